package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/pkg/logger"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOPIC ROLLUP QUERY
// Curriculum view: one row per topic ordered by struggle (lowest average
// mastery first), with the dominant mistake patterns across all students who
// touched the topic. Slow-moving, so it carries the long topics TTL.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopicRollupQuery contains the window selector.
type GetTopicRollupQuery struct {
	Period string
	Role   string
}

// Validate normalizes the query, defaulting to a monthly window.
func (q *GetTopicRollupQuery) Validate() error {
	if q.Period == "" {
		q.Period = string(timeutil.PeriodMonth)
	}
	if !timeutil.Period(q.Period).Valid() {
		return fmt.Errorf("get_topic_rollup: unknown period %q", q.Period)
	}
	if q.Role == "" {
		q.Role = "any"
	}
	return nil
}

// TopicRow is one topic's rollup entry.
type TopicRow struct {
	Topic          string   `json:"topic"`
	AverageMastery float64  `json:"average_mastery"`
	Students       int      `json:"students"`
	Interactions   int      `json:"interactions"`
	CommonMistakes []string `json:"common_mistakes,omitempty"`
}

// TopicRollup is the cached topics DTO.
type TopicRollup struct {
	Period      string     `json:"period"`
	GeneratedAt time.Time  `json:"generated_at"`
	Topics      []TopicRow `json:"topics"`
}

// GetTopicRollupHandler handles the GetTopicRollupQuery.
type GetTopicRollupHandler struct {
	log      telemetry.Log
	replayer progress.Replayer
	cache    cache.Cache
	logger   *logger.Logger
	now      func() time.Time
}

// NewGetTopicRollupHandler creates a new GetTopicRollupHandler.
func NewGetTopicRollupHandler(
	log telemetry.Log,
	replayer progress.Replayer,
	c cache.Cache,
	lg *logger.Logger,
) *GetTopicRollupHandler {
	return &GetTopicRollupHandler{log: log, replayer: replayer, cache: c, logger: lg, now: time.Now}
}

// Handle executes the topic rollup query.
func (h *GetTopicRollupHandler) Handle(ctx context.Context, q GetTopicRollupQuery) (*TopicRollup, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cache.Key("topics", q.Period, q.Role)
	var cached TopicRollup
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	window := timeutil.WindowEndingNow(timeutil.ParsePeriod(q.Period), h.now().UTC())
	interactions := h.log.Query(window, telemetry.KindInteraction)

	students := make(map[string]struct{})
	interactionCounts := make(map[string]int)
	for _, ev := range interactions {
		if hash := ev.StudentHash(); hash != "" {
			students[hash] = struct{}{}
		}
		interactionCounts[ev.Topic()]++
	}

	type topicAcc struct {
		masterySum int
		students   int
		mistakes   map[string]int
	}
	acc := make(map[string]*topicAcc)
	for hash := range students {
		sp := h.replayer.Replay(hash, h.log.ByActor(hash))
		if sp == nil {
			continue
		}
		for _, name := range sp.TopicNames() {
			a := acc[name]
			if a == nil {
				a = &topicAcc{mistakes: make(map[string]int)}
				acc[name] = a
			}
			tp := sp.Topics[name]
			a.masterySum += tp.MasteryLevel
			a.students++
			for pattern, n := range tp.ErrorFrequency {
				a.mistakes[pattern] += n
			}
		}
	}

	rollup := &TopicRollup{Period: q.Period, GeneratedAt: h.now().UTC()}
	for name, a := range acc {
		row := TopicRow{
			Topic:          name,
			Students:       a.students,
			Interactions:   interactionCounts[name],
			CommonMistakes: topMistakes(a.mistakes, 3),
		}
		if a.students > 0 {
			row.AverageMastery = round2(float64(a.masterySum) / float64(a.students))
		}
		rollup.Topics = append(rollup.Topics, row)
	}
	sort.Slice(rollup.Topics, func(i, j int) bool {
		if rollup.Topics[i].AverageMastery != rollup.Topics[j].AverageMastery {
			return rollup.Topics[i].AverageMastery < rollup.Topics[j].AverageMastery
		}
		return rollup.Topics[i].Topic < rollup.Topics[j].Topic
	})

	if err := h.cache.Set(ctx, key, rollup, cache.TTLTopics); err != nil {
		h.logger.Warn("topic rollup cache write failed",
			logger.CacheKey(key), logger.Err(err))
	}
	return rollup, nil
}

// topMistakes returns up to limit patterns by aggregate frequency, ties broken
// alphabetically.
func topMistakes(freq map[string]int, limit int) []string {
	patterns := make([]string, 0, len(freq))
	for p := range freq {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if freq[patterns[i]] != freq[patterns[j]] {
			return freq[patterns[i]] > freq[patterns[j]]
		}
		return patterns[i] < patterns[j]
	})
	if len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns
}
