package predictor

// StaticPredictor always returns the same direction. It has no state, so Update and Reset are
// no-ops. Used as the accuracy baseline.
type StaticPredictor struct {
	kind  Kind
	taken bool
}

// NewAlwaysTaken returns the predict-taken baseline.
func NewAlwaysTaken() *StaticPredictor {
	return &StaticPredictor{kind: AlwaysTaken, taken: true}
}

// NewNeverTaken returns the predict-not-taken baseline.
func NewNeverTaken() *StaticPredictor {
	return &StaticPredictor{kind: NeverTaken, taken: false}
}

func (p *StaticPredictor) Name() string { return p.kind.String() }

func (p *StaticPredictor) Kind() Kind { return p.kind }

func (p *StaticPredictor) Predict(uint64) bool { return p.taken }

func (p *StaticPredictor) Update(uint64, bool) {}

func (p *StaticPredictor) Reset() {}
