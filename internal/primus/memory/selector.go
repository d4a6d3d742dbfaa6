package memory

import (
	"log/slog"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/bdobrica/Primus/internal/primus/lexical"
)

// lengthCap is the content length, in runes, at which the length term saturates.
const lengthCap = 400

// Weights are the coefficients of the recall score
//
//	Similarity*cos + Jaccard*jac + Recency*2^(-age/HalfLife) + Role*r + Length*min(len,400)/400
type Weights struct {
	Similarity float64
	Jaccard    float64
	Recency    float64
	Role       float64
	Length     float64
	HalfLife   time.Duration
}

// DefaultWeights returns 0.55/0.15/0.18/0.08/0.04 with a 24h half-life.
func DefaultWeights() Weights {
	return Weights{
		Similarity: 0.55,
		Jaccard:    0.15,
		Recency:    0.18,
		Role:       0.08,
		Length:     0.04,
		HalfLife:   24 * time.Hour,
	}
}

// RoleWeigher returns the role preference of a candidate. Results outside
// [0,1] are clamped by the selector.
type RoleWeigher func(Role) float64

// RoleWeights builds a RoleWeigher from a table; roles missing from the
// table weigh 0.
func RoleWeights(table map[Role]float64) RoleWeigher {
	return func(r Role) float64 { return table[r] }
}

// DefaultRoleWeigher prefers summaries over meta notes over plain turns.
var DefaultRoleWeigher = RoleWeights(map[Role]float64{
	RoleSummary: 1.0,
	RoleMeta:    0.7,
	RoleUser:    0.5,
	RoleAI:      0.4,
})

// ScoredCandidate is a turn with its recall score.
type ScoredCandidate struct {
	Turn  Turn
	Score float64
}

// Selector ranks candidate turns against a query text. The zero value is
// usable and behaves like NewSelector with default weights.
type Selector struct {
	Weights    Weights
	RoleWeight RoleWeigher

	// Logger, when set, receives one debug line per scored candidate.
	Logger *slog.Logger

	// Now is the clock used for recency. Defaults to time.Now.
	Now func() time.Time
}

// NewSelector returns a Selector with the default weights and role table.
func NewSelector() *Selector {
	return &Selector{Weights: DefaultWeights(), RoleWeight: DefaultRoleWeigher}
}

// Select scores every candidate, keeps those scoring at least threshold, and
// returns the best k in non-increasing score order. Ties keep candidate order.
// The selector's Weights, RoleWeight and Now fields are the remaining inputs
// of the score; zero values fall back to DefaultWeights, DefaultRoleWeigher
// and time.Now.
func (s *Selector) Select(query string, candidates []Turn, k int, threshold float64) []ScoredCandidate {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	w := s.Weights
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	roleWeight := s.RoleWeight
	if roleWeight == nil {
		roleWeight = DefaultRoleWeigher
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var lambda float64
	if w.HalfLife > 0 {
		lambda = math.Ln2 / float64(w.HalfLife)
	}
	queryTokens := lexical.NewTokenSet(query)

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		age := max(now.Sub(c.CreatedAt), 0)
		sim := lexical.Similarity(query, c.Content)
		jac := lexical.Jaccard(queryTokens, lexical.NewTokenSet(c.Content))
		rec := math.Exp(-lambda * float64(age))
		r := clamp(roleWeight(c.Role), 0, 1)
		lenAdj := float64(min(utf8.RuneCountInString(c.Content), lengthCap)) / lengthCap

		score := w.Similarity*sim + w.Jaccard*jac + w.Recency*rec + w.Role*r + w.Length*lenAdj

		if s.Logger != nil {
			s.Logger.Debug("memory: candidate scored",
				"score", round3(score),
				"id", c.ID,
				"role", c.Role,
				"age_ms", age.Milliseconds(),
				"sim", round3(sim),
				"jac", round3(jac),
				"rec", round3(rec),
				"r", round3(r),
			)
		}

		if score >= threshold {
			scored = append(scored, ScoredCandidate{Turn: c, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// IDs returns the turn IDs of scored candidates, in order.
func IDs(scored []ScoredCandidate) []int64 {
	ids := make([]int64, len(scored))
	for i, sc := range scored {
		ids[i] = sc.Turn.ID
	}
	return ids
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
