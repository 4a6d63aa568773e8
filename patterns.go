package sdk

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mnemos-ai/sdk/memory"
)

// DefaultPatternThreshold is the minimum improvement at which an
// enhancement outcome is recorded as a learned pattern.
const DefaultPatternThreshold = 0.1

// patternConfidenceSamples is the number of observed outcomes at which a
// plan's confidence reaches 1.
const patternConfidenceSamples = 10

// EnhancementPlan is a learned recommendation for enhancing agents of
// one type.
type EnhancementPlan struct {
	// AgentType is the type the plan applies to.
	AgentType string `json:"agent_type"`

	// MemoryTypes are the memory types that contributed most to past
	// improvements, best first, at most three.
	MemoryTypes []memory.Type `json:"memory_types"`

	// ExpectedImprovement is the mean improvement across recorded
	// patterns.
	ExpectedImprovement float64 `json:"expected_improvement"`

	// Confidence grows with the number of recorded patterns, reaching 1
	// after ten samples.
	Confidence float64 `json:"confidence"`

	// Samples is the number of recorded patterns the plan is based on.
	Samples int `json:"samples"`
}

// PatternLearner observes enhancement outcomes whose improvement meets
// the threshold and distills them into learned patterns: procedural
// memories for reuse by retrieval, and per-agent-type plans
// recommending which memory types to favor. Sub-threshold outcomes are
// not recorded and do not grow a plan's confidence.
type PatternLearner struct {
	store     *memory.Store
	logger    *slog.Logger
	threshold float64

	mu           sync.Mutex
	types        map[string]map[memory.Type]*typeStat
	samples      map[string]int
	improvements map[string]float64
}

// typeStat accumulates one memory type's share of recorded patterns for
// one agent type.
type typeStat struct {
	improvementSum float64
	patterns       int
	applied        int
}

// NewPatternLearner creates a learner that stores patterns into the
// given memory store. A non-positive threshold selects
// DefaultPatternThreshold.
func NewPatternLearner(store *memory.Store, logger *slog.Logger, threshold float64) *PatternLearner {
	if threshold <= 0 {
		threshold = DefaultPatternThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternLearner{
		store:        store,
		logger:       logger,
		threshold:    threshold,
		types:        make(map[string]map[memory.Type]*typeStat),
		samples:      make(map[string]int),
		improvements: make(map[string]float64),
	}
}

// Record observes one enhancement outcome. Outcomes whose improvement
// meets the threshold are recorded as a pattern sample and stored as a
// procedural memory so future retrieval can surface them; everything
// else is discarded.
func (p *PatternLearner) Record(agentType string, result *EnhancementResult) {
	if agentType == "" || result == nil || !result.Success {
		return
	}
	if result.Improvement < p.threshold {
		return
	}

	p.mu.Lock()
	p.samples[agentType]++
	p.improvements[agentType] += result.Improvement
	stats, ok := p.types[agentType]
	if !ok {
		stats = make(map[memory.Type]*typeStat)
		p.types[agentType] = stats
	}
	for memType, applied := range result.AppliedByType {
		st := stats[memType]
		if st == nil {
			st = &typeStat{}
			stats[memType] = st
		}
		st.improvementSum += result.Improvement
		st.patterns++
		st.applied += applied
	}
	p.mu.Unlock()

	importance := result.Improvement
	if importance > 1 {
		importance = 1
	}

	_, err := p.store.Store(memory.Memory{
		Content: fmt.Sprintf("enhancing %s agents with %d memories improved performance by %.3f",
			agentType, result.Applied, result.Improvement),
		Type:       memory.TypeProcedural,
		Importance: importance,
		Tags:       []string{"pattern", agentType},
		Metadata: map[string]any{
			"agent_type":  agentType,
			"applied":     result.Applied,
			"improvement": result.Improvement,
		},
	})
	if err != nil {
		p.logger.Warn("failed to store learned pattern", "agent_type", agentType, "error", err)
	}
}

// Plan returns the learned enhancement plan for an agent type. An
// unobserved type yields a zero-confidence plan with no recommendations.
func (p *PatternLearner) Plan(agentType string) EnhancementPlan {
	p.mu.Lock()
	defer p.mu.Unlock()

	plan := EnhancementPlan{
		AgentType: agentType,
		Samples:   p.samples[agentType],
	}
	plan.Confidence = float64(plan.Samples) / patternConfidenceSamples
	if plan.Confidence > 1 {
		plan.Confidence = 1
	}
	if plan.Samples > 0 {
		plan.ExpectedImprovement = p.improvements[agentType] / float64(plan.Samples)
	}

	stats := p.types[agentType]
	if len(stats) == 0 {
		return plan
	}

	// Rank by mean improvement across the patterns each type appeared
	// in; ties fall back to how many memories of the type were applied,
	// then to the type name for determinism.
	type entry struct {
		memType memory.Type
		mean    float64
		applied int
	}
	entries := make([]entry, 0, len(stats))
	for memType, st := range stats {
		entries = append(entries, entry{
			memType: memType,
			mean:    st.improvementSum / float64(st.patterns),
			applied: st.applied,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].mean != entries[j].mean {
			return entries[i].mean > entries[j].mean
		}
		if entries[i].applied != entries[j].applied {
			return entries[i].applied > entries[j].applied
		}
		return entries[i].memType < entries[j].memType
	})

	for i, e := range entries {
		if i == 3 {
			break
		}
		plan.MemoryTypes = append(plan.MemoryTypes, e.memType)
	}
	return plan
}
