package analysis

// CrimeTypes are the labels the fallback classifier picks from.
var CrimeTypes = []string{"abuse", "assault", "arson", "arrest"}

var descriptions = map[string]string{
	"abuse": "The detected video may involve abuse-related actions.\n" +
		"Abuse can be verbal, emotional, or physical.\n" +
		"It often includes intentional harm inflicted on a victim.\n" +
		"The victim may display distress or defensive behavior.\n" +
		"There might be aggressive body language or shouting.\n" +
		"Such scenes usually lack mutual consent or context of play.\n" +
		"It is important to report such behavior to authorities.\n" +
		"Please verify with human oversight for further action.",

	"assault": "Assault involves a physical attack or aggressive encounter.\n" +
		"This may include punching, kicking, or pushing actions.\n" +
		"The victim may be seen retreating or being overpowered.\n" +
		"There is usually a visible conflict or threat present.\n" +
		"Immediate attention from security or authorities is critical.\n" +
		"The video may include violent gestures or weapons.\n" +
		"Confirm with experts before initiating legal steps.",

	"arson": "This video likely captures an incident of arson.\n" +
		"Arson is the criminal act of intentionally setting fire.\n" +
		"You may see flames, smoke, or ignition devices.\n" +
		"Often, it targets property like buildings or vehicles.\n" +
		"Suspects may appear to flee the scene post-ignition.\n" +
		"These cases require immediate fire and law response.\n" +
		"This detection must be validated with caution.",

	"arrest": "The scene likely depicts a law enforcement arrest.\n" +
		"An arrest involves restraining a suspect or individual.\n" +
		"You may see officers using handcuffs or other tools.\n" +
		"The individual may be cooperating or resisting.\n" +
		"The presence of uniforms or badges may be evident.\n" +
		"Misidentification is possible, confirm context.\n" +
		"Verify with official reports before assuming guilt.",
}

// Description returns the canned text for a crime type, or "" when unknown.
func Description(crimeType string) string {
	return descriptions[crimeType]
}
