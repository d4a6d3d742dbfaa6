package autonomy

// Reward scores one piece of feedback.
type Reward struct {
	Value  float64
	Detail string
}

// FeedbackKind classifies feedback.
type FeedbackKind int

const (
	// FeedbackAutoTriggered records an autonomous action; it is informational.
	FeedbackAutoTriggered FeedbackKind = iota
	FeedbackThumbUp
	FeedbackThumbDown
	FeedbackNoResponse
)

// Feedback is something the critic can score.
type Feedback struct {
	Kind   FeedbackKind
	Plan   Plan
	Result ExecResult
}

// AutoTriggered wraps an executed plan as feedback.
func AutoTriggered(p Plan, r ExecResult) Feedback {
	return Feedback{Kind: FeedbackAutoTriggered, Plan: p, Result: r}
}

// Thumb is explicit user feedback.
func Thumb(up bool) Feedback {
	if up {
		return Feedback{Kind: FeedbackThumbUp}
	}
	return Feedback{Kind: FeedbackThumbDown}
}

// NoResponse records that the user did not react.
func NoResponse() Feedback { return Feedback{Kind: FeedbackNoResponse} }

// Critic scores feedback.
type Critic interface {
	Log(f Feedback) Reward
}

// SimpleCritic maps feedback to fixed rewards: thumbs up +Alpha, thumbs down
// -Beta, silence -Gamma, autonomous actions 0.
type SimpleCritic struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// NewSimpleCritic returns a critic with alpha=1, beta=1, gamma=0.3.
func NewSimpleCritic() SimpleCritic {
	return SimpleCritic{Alpha: 1, Beta: 1, Gamma: 0.3}
}

// Log implements Critic.
func (c SimpleCritic) Log(f Feedback) Reward {
	switch f.Kind {
	case FeedbackThumbUp:
		return Reward{Value: c.Alpha, Detail: "thumb_up"}
	case FeedbackThumbDown:
		return Reward{Value: -c.Beta, Detail: "thumb_down"}
	case FeedbackNoResponse:
		return Reward{Value: -c.Gamma, Detail: "no_response"}
	default:
		return Reward{Value: 0, Detail: "exec=" + f.Result.String()}
	}
}
