package data

import (
	"fmt"
	"sync"
)

type Parameters struct {
	Users              int     `json:"Users"`
	Attackers          int     `json:"Attackers"`
	Capacity           int     `json:"Capacity"`
	RiskConstant       float64 `json:"RiskConstant"`
	RiskPerBucket      float64 `json:"RiskPerBucket"`
	AttackProbability  float64 `json:"AttackProbability"`
	RevealProbability  float64 `json:"RevealProbability"`
	MaxTicks           int     `json:"MaxTicks"`
	Seed               int64   `json:"Seed"`
	EvictIsolated      bool    `json:"EvictIsolated"`
	ShuffleBeforeSplit bool    `json:"ShuffleBeforeSplit"`
	StopWhenClean      bool    `json:"StopWhenClean"`
}

// TickMetrics is the per-tick observation exposed to metrics sinks.
type TickMetrics struct {
	RunId              string  `json:"RunId" db:"run_id"`
	Tick               int     `json:"Tick" db:"tick"`
	Buckets            int     `json:"Buckets" db:"buckets"`
	AverageOccupancy   float64 `json:"AverageOccupancy" db:"average_occupancy"`
	Users              int     `json:"Users" db:"users"`
	AttackedBuckets    int     `json:"AttackedBuckets" db:"attacked_buckets"`
	EvictedThisTick    int     `json:"EvictedThisTick" db:"evicted_this_tick"`
	EvictedAttackers   int     `json:"EvictedAttackers" db:"evicted_attackers"`
	EvictedBenign      int     `json:"EvictedBenign" db:"evicted_benign"`
	RemainingAttackers int     `json:"RemainingAttackers" db:"remaining_attackers"`
	TotalRisk          float64 `json:"TotalRisk" db:"total_risk"`
}

// Suspect is a user still carrying risk when the run ended.
type Suspect struct {
	User int     `json:"User"`
	Risk float64 `json:"Risk"`
}

type Result struct {
	RunId    string        `json:"RunId"`
	P        Parameters    `json:"Parameters"`
	Ticks    []TickMetrics `json:"Ticks"`
	Clean    bool          `json:"Clean"`
	Reason   string        `json:"Reason"`
	Suspects []Suspect     `json:"Suspects"`
}

func (p *Parameters) Hash() string {
	return fmt.Sprintf("%d-%d-%d-%g-%g-%g-%g-%d-%d-%t-%t-%t", p.Users, p.Attackers, p.Capacity, p.RiskConstant, p.RiskPerBucket, p.AttackProbability, p.RevealProbability, p.MaxTicks, p.Seed, p.EvictIsolated, p.ShuffleBeforeSplit, p.StopWhenClean)
}

func (p *Parameters) Equals(p2 *Parameters) bool {
	return p.Hash() == p2.Hash()
}

// Last returns the final observation of the run, or a zero value if the run
// never ticked.
func (r *Result) Last() TickMetrics {
	if len(r.Ticks) == 0 {
		return TickMetrics{RunId: r.RunId}
	}
	return r.Ticks[len(r.Ticks)-1]
}

// Recorder keeps every observation in memory.
type Recorder struct {
	ticks []TickMetrics
	mu    sync.RWMutex
}

func NewRecorder() *Recorder {
	return &Recorder{
		ticks: make([]TickMetrics, 0),
	}
}

func (r *Recorder) Observe(m TickMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, m)
	return nil
}

func (r *Recorder) Ticks() []TickMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]TickMetrics, len(r.ticks))
	copy(ret, r.ticks)
	return ret
}
