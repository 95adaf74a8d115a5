package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	rows  map[string]string
	calls int
}

func (f *fakeRows) LoadRow(_ context.Context, table, key string) (json.RawMessage, error) {
	f.calls++
	raw, ok := f.rows[table+"/"+key]
	if !ok {
		return nil, errors.New("not found")
	}
	return json.RawMessage(raw), nil
}

func TestDecodeNotify_InlineRecord(t *testing.T) {
	rows := &fakeRows{}

	e, err := decodeNotify(context.Background(), `{"table":"sos_alerts","type":"INSERT","record":{"alert_id":"a1"}}`, rows)

	require.NoError(t, err)
	assert.Equal(t, "sos_alerts", e.Table)
	assert.JSONEq(t, `{"alert_id":"a1"}`, string(e.Record))
	assert.Zero(t, rows.calls)
}

func TestDecodeNotify_KeyOnlyLoadsRow(t *testing.T) {
	rows := &fakeRows{rows: map[string]string{"sos_alerts/a1": `{"alert_id":"a1","message":"long"}`}}

	e, err := decodeNotify(context.Background(), `{"table":"sos_alerts","type":"UPDATE","key":"a1","commit_timestamp":"2026-01-02T03:04:05Z"}`, rows)

	require.NoError(t, err)
	assert.Equal(t, Update, e.Type)
	assert.Equal(t, "a1", e.Key)
	assert.JSONEq(t, `{"alert_id":"a1","message":"long"}`, string(e.Record))
	assert.Equal(t, 1, rows.calls)
}

func TestDecodeNotify_Errors(t *testing.T) {
	rows := &fakeRows{}
	ctx := context.Background()

	_, err := decodeNotify(ctx, `not json`, rows)
	assert.Error(t, err)

	_, err = decodeNotify(ctx, `{"table":"sos_alerts","type":"INSERT","record":null}`, rows)
	assert.Error(t, err)

	_, err = decodeNotify(ctx, `{"table":"sos_alerts","type":"INSERT","key":"gone"}`, rows)
	assert.Error(t, err)

	_, err = decodeNotify(ctx, `{"table":"sos_alerts","type":"INSERT","key":"a1"}`, nil)
	assert.Error(t, err)
}
