package main

import (
	"fmt"
	"time"

	"crimewatch/backend/internal/capture"
	"crimewatch/backend/internal/dispatch"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/geo"
	"crimewatch/backend/internal/sos"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func sendCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	token, err := serverToken(ctx, c)
	if err != nil {
		return err
	}

	var opts []capture.Option
	if n := c.Int("max-bytes"); n > 0 {
		opts = append(opts, capture.WithMaxBytes(n))
	}
	recorder := capture.NewController(capture.FileMicrophone{Path: c.String("recording")}, opts...)

	session := sos.NewSession(
		geo.NewResolver(geo.DefaultStations()),
		recorder,
		sos.NewHTTPSender(c.GlobalString("server"), token),
		sos.WithReporter(dispatch.Reporter{Name: c.String("name"), Contact: c.String("contact")}),
		sos.WithOnChange(func(st sos.State) {
			log.WithField("status", st.Status).Debug("session changed")
		}),
	)
	defer session.Close()

	if c.IsSet("lat") && c.IsSet("lng") {
		p := geo.Point{Lat: c.Float64("lat"), Lng: c.Float64("lng")}
		if st := session.UpdateLocation(p); st != nil {
			fmt.Printf("nearest station: %s (%.2f km)\n", st.Name, geo.Distance(p, st.Point()))
		}
	}
	session.SetMessage(c.String("message"))

	if c.String("recording") != "" {
		if err := session.StartRecording(ctx); err != nil {
			return cli.NewExitError(fmt.Sprintf("recording: %v", err), 1)
		}
		select {
		case <-time.After(c.Duration("record-for")):
		case <-ctx.Done():
		}
		rec, err := session.StopRecording()
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("recording: %v", err), 1)
		}
		if rec != nil {
			log.WithFields(logrus.Fields{
				"bytes":     rec.Size(),
				"truncated": rec.Truncated,
			}).Info("recording captured")
		}
	}

	res, err := session.Send(ctx)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("send failed [%s]: %v", errs.Code(err), err), 1)
	}
	fmt.Printf("alert %s sent\n", res.AlertID)
	if res.RecordingURL != "" {
		fmt.Printf("recording: %s\n", res.RecordingURL)
	}
	if res.Warning != nil {
		fmt.Printf("warning [%s]: %v\n", errs.Code(res.Warning), res.Warning)
	}
	return nil
}
