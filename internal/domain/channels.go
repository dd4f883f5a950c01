package domain

// Signal-bus channel names. Quote channels carry a per-intent suffix so
// subscribers can follow a single intent's quote flow.
const (
	ChannelIntents       = "ch:intents"
	ChannelQuotes        = "ch:quotes"
	ChannelExecutions    = "ch:executions"
	ChannelOpportunities = "ch:arb"
)

// QuoteChannel returns the per-intent quote channel name.
func QuoteChannel(intentID string) string {
	return ChannelQuotes + ":" + intentID
}
