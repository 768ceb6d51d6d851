package layout

// Tuning holds the force solver's knobs. Values are hot-reloadable at
// runtime; SetTuning swaps them between steps.
type Tuning struct {
	// ChargeStrength is the many-body repulsion magnitude (applied as a
	// push, so positive values separate nodes)
	ChargeStrength float64 `yaml:"charge_strength"`
	// SpringStrength scales link attraction along edges
	SpringStrength float64 `yaml:"spring_strength"`
	// SpringBaseLength is the rest length of a weight-1 edge; heavier
	// deals shrink it, pulling important relationships closer
	SpringBaseLength float64 `yaml:"spring_base_length"`
	// CollidePadding is added to node radii when resolving overlap
	CollidePadding float64 `yaml:"collide_padding"`
	// CenterGravity is the weak pull toward the viewport origin that
	// keeps disconnected components from drifting to infinity
	CenterGravity float64 `yaml:"center_gravity"`
	// AlphaDecay is the geometric cooling rate per step
	AlphaDecay float64 `yaml:"alpha_decay"`
	// AlphaMin is the settling threshold; below it steps are no-ops
	AlphaMin float64 `yaml:"alpha_min"`
	// VelocityDecay is the per-step friction applied to velocities
	VelocityDecay float64 `yaml:"velocity_decay"`
	// MaxVelocity clamps per-step displacement to contain blow-ups
	MaxVelocity float64 `yaml:"max_velocity"`
	// MinDistance clamps pair distances so coincident nodes cannot
	// produce unbounded forces
	MinDistance float64 `yaml:"min_distance"`
	// BarnesHutTheta is the approximation accuracy (0 = exact)
	BarnesHutTheta float64 `yaml:"barnes_hut_theta"`
	// BarnesHutThreshold is the node count above which repulsion
	// switches from all-pairs to the quadtree approximation
	BarnesHutThreshold int `yaml:"barnes_hut_threshold"`
}

// DefaultTuning returns the stock solver parameters
func DefaultTuning() Tuning {
	return Tuning{
		ChargeStrength:     1200,
		SpringStrength:     0.08,
		SpringBaseLength:   130,
		CollidePadding:     4,
		CenterGravity:      0.015,
		AlphaDecay:         0.0228,
		AlphaMin:           0.001,
		VelocityDecay:      0.4,
		MaxVelocity:        28,
		MinDistance:        1.0,
		BarnesHutTheta:     0.9,
		BarnesHutThreshold: 300,
	}
}

// sanitize fills zero values with defaults so a sparse YAML override
// cannot zero out a force entirely by accident.
func (t Tuning) sanitize() Tuning {
	def := DefaultTuning()
	if t.ChargeStrength <= 0 {
		t.ChargeStrength = def.ChargeStrength
	}
	if t.SpringStrength <= 0 {
		t.SpringStrength = def.SpringStrength
	}
	if t.SpringBaseLength <= 0 {
		t.SpringBaseLength = def.SpringBaseLength
	}
	if t.CollidePadding < 0 {
		t.CollidePadding = def.CollidePadding
	}
	if t.CenterGravity <= 0 {
		t.CenterGravity = def.CenterGravity
	}
	if t.AlphaDecay <= 0 || t.AlphaDecay >= 1 {
		t.AlphaDecay = def.AlphaDecay
	}
	if t.AlphaMin <= 0 {
		t.AlphaMin = def.AlphaMin
	}
	if t.VelocityDecay <= 0 || t.VelocityDecay >= 1 {
		t.VelocityDecay = def.VelocityDecay
	}
	if t.MaxVelocity <= 0 {
		t.MaxVelocity = def.MaxVelocity
	}
	if t.MinDistance <= 0 {
		t.MinDistance = def.MinDistance
	}
	if t.BarnesHutTheta <= 0 {
		t.BarnesHutTheta = def.BarnesHutTheta
	}
	if t.BarnesHutThreshold <= 0 {
		t.BarnesHutThreshold = def.BarnesHutThreshold
	}
	return t
}
