package core

// Label names a mistake severity
type Label string

const (
	LabelTimeTrouble Label = "Time trouble"
	LabelBlunder     Label = "Blunder"
	LabelMistake     Label = "Mistake"
	LabelInaccuracy  Label = "Inaccuracy"
	LabelMinor       Label = "Minor inaccuracy or stylistic"
)

// Feature vector layout
const (
	FeatureMaterial = iota
	FeatureKingSafety
	FeatureMobility
	FeatureTimeUsed
	FeatureActualEval
	FeatureCPLoss
	FeatureCount
)

// FeatureNames matches the Feature* index constants.
var FeatureNames = [FeatureCount]string{
	"material",
	"king_safety",
	"mobility",
	"time_used",
	"eval_cp",
	"cp_loss",
}

type Features [FeatureCount]float64

// MistakeRecord is one classified candidate ply. Evaluations are centipawns
// relative to the side that played the move.
type MistakeRecord struct {
	GameID     string    `json:"game_id"`
	Ply        int       `json:"ply"`
	FEN        string    `json:"fen"`
	Move       string    `json:"actual_move"`
	MoveSAN    string    `json:"actual_move_san"`
	BestMove   string    `json:"best_move"`
	BestEval   int       `json:"best_eval_cp"`
	ActualEval int       `json:"actual_eval_cp"`
	CPLoss     int       `json:"cp_loss"`
	TimeUsed   TimeSpent `json:"-"`
	Label      Label     `json:"mistake_type"`
	Features   Features  `json:"features"`
}

// EffectiveLoss is the loss used for labelling and clustering; engine noise can
// make the raw loss negative, which counts as no loss.
func (m MistakeRecord) EffectiveLoss() int {
	if m.CPLoss < 0 {
		return 0
	}
	return m.CPLoss
}

// ClusterResult is one behavioral group of mistakes
type ClusterResult struct {
	ID       int             `json:"cluster"`
	Centroid Features        `json:"centroid"`
	Members  []MistakeRecord `json:"members"`
}
