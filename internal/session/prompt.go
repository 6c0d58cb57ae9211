package session

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultAgentName is the assistant's spoken name.
const DefaultAgentName = "Natalie"

const fallbackZoneName = "IST (UTC+5:30)"

// DefaultBasePrompt is used when no system prompt file is configured.
func DefaultBasePrompt(agent string) string {
	return fmt.Sprintf("You are %s, a warm and knowledgeable college counselor for VIT speaking with a prospective student over a voice call. "+
		"Keep every reply short and conversational. Use the available tools for course details, career paths, alumni information and returning students instead of guessing.", agent)
}

// Greeting is the seeded instruction that makes the model open the call.
func Greeting(agent string) string {
	return fmt.Sprintf("Greet the student warmly and introduce yourself as %s, a college counselor for VIT. "+
		"Then ask for their name. Once you have their name, ask for their mobile number (10 digits) OR email address - at least one of them is required. "+
		"If they provide a phone number, confirm it by reciting the 10 digits back to them. "+
		"You can ask for both, but at least one contact method is mandatory. "+
		"Once you have their name and at least one contact method (phone or email), you can proceed with the counseling session. "+
		"Be friendly, warm, and approachable - like a caring counselor. "+
		"Keep each question brief and wait for their response before moving to the next question.", agent)
}

// LoadLocation resolves a zone name, falling back to a fixed IST offset. The
// returned label is shown to the model.
func LoadLocation(name string) (*time.Location, string) {
	loc, err := time.LoadLocation(name)
	if err != nil || name == "" {
		return time.FixedZone("IST", 5*60*60+30*60), fallbackZoneName
	}
	return loc, ""
}

// DateTimeBlock renders the current date and time section of the system
// instruction. An empty zoneLabel is derived from loc.
func DateTimeBlock(now time.Time, loc *time.Location, zoneLabel string) string {
	now = now.In(loc)
	tomorrow := now.AddDate(0, 0, 1)
	if zoneLabel == "" {
		abbr, _ := now.Zone()
		zoneLabel = fmt.Sprintf("%s (%s)", loc.String(), abbr)
	}

	var b strings.Builder
	b.WriteString("\n\n## CURRENT DATE AND TIME INFORMATION\n\n")
	b.WriteString("**IMPORTANT: Use this information when answering questions about dates/times.**\n\n")
	fmt.Fprintf(&b, "- **Current Date**: %s (%s)\n", now.Format("January 02, 2006"), now.Format("Monday"))
	fmt.Fprintf(&b, "- **Current Date (YYYY-MM-DD format)**: %s\n", now.Format(time.DateOnly))
	fmt.Fprintf(&b, "- **Current Time**: %s (%s)\n", now.Format("15:04"), zoneLabel)
	fmt.Fprintf(&b, "- **Tomorrow's Date**: %s (%s)\n", tomorrow.Format("January 02, 2006"), tomorrow.Format("Monday"))
	fmt.Fprintf(&b, "- **Tomorrow's Date (YYYY-MM-DD format)**: %s\n", tomorrow.Format(time.DateOnly))
	fmt.Fprintf(&b, "- Current timezone is %s\n\n", zoneLabel)
	return b.String()
}

// SystemInstruction joins the base prompt, the date/time block and the
// rendered guardrails.
func SystemInstruction(base, dateTime, guardrails string) string {
	return base + dateTime + guardrails
}
