package session

import "fmt"

const (
	messageOpenedTitleFormat = ":spades: **Session %q is open.**"
	messageOpenedJoinFormat  = "Join with code `%s` (%s mode)."
	messageClosedTitleFormat = ":stopwatch: **Session %q (%s) has ended.**"
	messageClosedStatsFormat = "-# %d task(s) estimated by %d participant(s). Full results attached."
	messagePoweredByLine     = "-# *Powered by Planning Poker*"

	summaryLabelSession      = "Session"
	summaryLabelMode         = "Mode"
	summaryLabelPeriod       = "Period"
	summaryLabelParticipants = "Participants"
	summaryNoParticipants    = "(none)"
	summaryNoVotes           = "(no votes)"
	summaryNoResult          = "-"
	summaryClosedMarker      = "closed"
	summaryOpenMarker        = "open"
)

func closedAnnouncement(name, code string, tasks, participants int) string {
	return fmt.Sprintf(messageClosedTitleFormat, name, code) + "\n" +
		fmt.Sprintf(messageClosedStatsFormat, tasks, participants) + "\n" +
		messagePoweredByLine
}

func openedAnnouncement(name, code, mode string) string {
	return fmt.Sprintf(messageOpenedTitleFormat, name) + "\n" +
		fmt.Sprintf(messageOpenedJoinFormat, code, mode) + "\n" +
		messagePoweredByLine
}
