package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTracked counts group messages that went through the counter
	// pipeline.
	MessagesTracked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "randybot_messages_tracked_total",
		Help: "Group messages recorded by the message counter.",
	})

	// RaffleJoins counts join attempts by outcome.
	RaffleJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randybot_raffle_joins_total",
		Help: "Raffle join attempts by outcome.",
	}, []string{"outcome"})

	// RollTransitions counts roll state-machine operations by command.
	RollTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randybot_roll_transitions_total",
		Help: "Roll session transitions by operation.",
	}, []string{"op"})

	// CommandErrors counts handler failures by command.
	CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "randybot_command_errors_total",
		Help: "Command handler failures.",
	}, []string{"command"})
)
