package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloudesk/internal/cache"
	"cloudesk/internal/knowledge"
	"cloudesk/internal/logging"
	"cloudesk/internal/metrics"
	"cloudesk/internal/models"
	"cloudesk/internal/monitor"
	"cloudesk/internal/notify"
	"cloudesk/internal/retrieval"
)

// Retriever answers a query from the knowledge base. Satisfied by
// *retrieval.Engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []models.RetrievalMatch
}

// Generator produces a model completion. Satisfied by *llm.Client; nil
// runs the pipeline in knowledge-only mode.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (*models.ModelCallResult, error)
}

// Options tunes per-request behavior.
type Options struct {
	RequestTimeout time.Duration
	Monitor        monitor.Options
}

// Pipeline is the perceive-plan-execute loop that turns one case input
// into a reply plus an action ledger. No state persists between cases;
// the tiered cache is the only shared mutable resource and it carries
// its own single-flight discipline.
type Pipeline struct {
	retriever  Retriever
	generator  Generator
	cache      *cache.Tiered
	dispatcher *notify.Dispatcher
	classifier *Classifier
	opts       Options
}

// New wires the pipeline. generator and dispatcher may be nil; the
// corresponding capabilities degrade per the error-handling rules
// instead of branching into separate code paths.
func New(retriever Retriever, generator Generator, tc *cache.Tiered, dispatcher *notify.Dispatcher, classifier *Classifier, opts Options) *Pipeline {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	return &Pipeline{
		retriever:  retriever,
		generator:  generator,
		cache:      tc,
		dispatcher: dispatcher,
		classifier: classifier,
		opts:       opts,
	}
}

// ProcessCase runs the three stages for one case. The only error it can
// return is a *models.ValidationError for malformed input; every other
// fault is absorbed into a degraded-but-valid reply.
func (p *Pipeline) ProcessCase(ctx context.Context, input *models.CaseInput) (*models.CaseResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := logging.WithCase(input.CaseID)

	ctx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	// Perceive.
	events := monitor.EventsFromMonitorLog(input.MonitorLog)
	state := monitor.Perceive(input.APIStatus, events, p.opts.Monitor)
	intent := p.classifier.Classify(input.UserQuery)
	log.Info("case perceived",
		"intent", intent,
		"severity", state.OverallSeverity.String(),
		"degraded", state.Degraded,
		"recent_errors", state.RecentErrorCount)

	// Plan.
	plan := planTasks(intent, state)

	// Execute planned tasks concurrently. Each task absorbs its own
	// failure; nothing past validation may abort the case.
	var (
		wg           sync.WaitGroup
		answer       string
		answerMode   string
		stateSummary string
		ledger       = notify.NewLedger()
	)

	if plan.retrieve {
		wg.Add(1)
		go func() {
			defer wg.Done()
			answer, answerMode = p.runRetrieve(ctx, log, input, state)
		}()
	}
	if plan.summarize {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stateSummary = summarizeState(state)
		}()
	}
	if plan.notifyTask && p.dispatcher != nil && p.dispatcher.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.dispatcher.Dispatch(ctx, notify.Alert{
				CaseID:          input.CaseID,
				UserQuery:       input.UserQuery,
				APIStatus:       input.APIStatus,
				APIResponseTime: input.APIResponseTime,
				MonitorLog:      input.MonitorLog,
				LatestError:     state.LatestError,
				StateSummary:    summarizeState(state),
			}, ledger)
		}()
	}
	wg.Wait()

	// Assemble. State description always precedes knowledge content so
	// an ongoing incident is the first thing the user reads.
	var parts []string
	if stateSummary != "" {
		parts = append(parts, stateSummary)
	}
	if answer != "" {
		parts = append(parts, answer)
	}
	reply := strings.Join(parts, "\n\n")
	if reply == "" {
		reply = replyApologetic
		answerMode = "fallback"
	}

	metrics.CasesProcessed.WithLabelValues(string(intent)).Inc()
	metrics.CaseDuration.Observe(time.Since(start).Seconds())
	if answerMode != "" {
		metrics.RepliesByMode.WithLabelValues(answerMode).Inc()
	}
	log.Info("case completed",
		"mode", answerMode,
		"actions", len(ledger.Outcomes()),
		"duration_ms", time.Since(start).Milliseconds())

	return &models.CaseResult{
		CaseID:          input.CaseID,
		Reply:           reply,
		ActionTriggered: ledger.ActionMap(),
	}, nil
}

// taskPlan is the set of tasks selected for one case.
type taskPlan struct {
	retrieve   bool
	summarize  bool
	notifyTask bool
}

// planTasks maps intent and state to tasks. A degraded state forces a
// notification no matter what the user asked.
func planTasks(intent Intent, state models.SystemState) taskPlan {
	var plan taskPlan
	switch intent {
	case IntentKnowledge:
		plan.retrieve = true
	case IntentStatus:
		plan.summarize = true
	default:
		plan.retrieve = true
		plan.summarize = true
	}
	if state.Degraded {
		plan.notifyTask = true
	}
	return plan
}

// runRetrieve produces the answer portion of the reply: knowledge base
// first, model refinement or fallback second, apologetic text last.
// Returns the answer and the mode that produced it.
func (p *Pipeline) runRetrieve(ctx context.Context, log *slog.Logger, input *models.CaseInput, state models.SystemState) (string, string) {
	key := "retrieve:" + queryHash(input.UserQuery)

	raw, err := p.cache.GetOrCompute(ctx, key, 0, func(ctx context.Context) ([]byte, error) {
		matches := p.retriever.Retrieve(ctx, input.UserQuery)
		return []byte(joinAnswers(matches)), nil
	})
	if err != nil {
		log.Warn("retrieve task failed", "error", err)
		return replyRetrievalDown, "fallback"
	}
	knowledgeText := string(raw)

	// A healthy request with a model available gets a refined answer;
	// the refinement itself is cached so repeated questions cost one
	// model call. Degraded-state replies are never cached, because the
	// state context baked into them goes stale.
	if p.generator != nil {
		if !state.Degraded {
			replyKey := "reply:" + queryHash(input.UserQuery)
			cached, err := p.cache.GetOrCompute(ctx, replyKey, 0, func(ctx context.Context) ([]byte, error) {
				reply, err := p.generate(ctx, input.UserQuery, knowledgeText, state)
				if err != nil {
					return nil, err
				}
				return []byte(reply), nil
			})
			if err == nil {
				return string(cached), "model"
			}
			log.Warn("model generation failed", "error", err)
		} else {
			if reply, err := p.generate(ctx, input.UserQuery, knowledgeText, state); err == nil {
				return reply, "model"
			} else {
				log.Warn("model generation failed", "error", err)
			}
		}
	}

	// Model unavailable or disabled: serve the knowledge base directly.
	if knowledgeText != "" {
		return replyKnowledgePrefix + knowledgeText, "knowledge"
	}
	return replyApologetic, "fallback"
}

// generate asks the model for a reply seeded with whatever context is
// available. ErrModelUnavailable propagates so the caller can apply the
// knowledge-only fallback.
func (p *Pipeline) generate(ctx context.Context, query, knowledgeText string, state models.SystemState) (string, error) {
	sys := systemPrompt
	if state.LatestError != nil {
		msg := state.LatestError.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		sys += "\n⚠️ 系统状态提醒：" + msg
	}
	if knowledgeText != "" {
		sys += "\n💡 提示：已找到相关知识库信息，请基于事实回答。"
	}

	background := knowledgeText
	if background == "" {
		background = "知识库中未找到相关信息"
	}
	user := fmt.Sprintf("用户问题：%s\n相关背景：%s", query, background)

	result, err := p.generator.Generate(ctx, sys, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Content), nil
}

// summarizeState renders SystemState as honest user-facing text. It
// never claims health the monitor data does not show, and a degraded
// state is stated as degraded.
func summarizeState(state models.SystemState) string {
	if !state.Degraded {
		if state.OverallSeverity == models.SeverityOK {
			return stateHealthy
		}
		return stateWatching
	}

	errTime := "最近"
	errMsg := "服务异常"
	if state.LatestError != nil {
		if !state.LatestError.Timestamp.IsZero() {
			errTime = state.LatestError.Timestamp.Format("2006-01-02 15:04:05")
		}
		if state.LatestError.Message != "" {
			errMsg = state.LatestError.Message
		}
	}
	return fmt.Sprintf("根据监控数据，系统在%s出现了异常：%s。我们的技术团队已收到告警并正在处理中。请您稍后重试，或联系技术支持获取最新进展。", errTime, errMsg)
}

// joinAnswers concatenates match answers in rank order.
func joinAnswers(matches []models.RetrievalMatch) string {
	if len(matches) == 0 {
		return ""
	}
	answers := make([]string, 0, len(matches))
	for _, m := range matches {
		answers = append(answers, m.Entry.Answer)
	}
	return strings.Join(answers, "\n")
}

// queryHash normalizes the query and hashes it into a stable cache key.
func queryHash(query string) string {
	sum := md5.Sum([]byte(knowledge.Normalize(query)))
	return hex.EncodeToString(sum[:])
}

// KnowledgeProbe builds the classifier's knowledge signal from a store:
// true when the index has any lexical match at the given threshold.
func KnowledgeProbe(store *knowledge.Store, fuzzyThreshold float64) func(string) bool {
	return func(query string) bool {
		idx := store.Index()
		if idx.LookupExact(query) != nil {
			return true
		}
		if len(idx.LookupCategory(query)) > 0 {
			return true
		}
		return len(idx.LookupFuzzy(query, fuzzyThreshold)) > 0
	}
}

var _ Retriever = (*retrieval.Engine)(nil)
