package pipeline

import "strings"

// Intent classifies what a user query is asking for.
type Intent string

const (
	IntentKnowledge Intent = "knowledge_query"
	IntentStatus    Intent = "status_query"
	IntentMixed     Intent = "mixed"
)

// statusCues are the lexical markers of a system-status question, in
// both Chinese and English. Matching is substring-based over the
// lowercased query.
var statusCues = []string{
	"系统状态", "系统稳定", "系统正常", "系统问题", "系统挂", "系统出问题",
	"宕机", "故障", "异常", "报错", "错误", "监控", "日志", "挂了", "挂掉",
	"是否正常", "是否稳定", "怎么回事", "什么情况", "怎么了",
	"api挂", "api问题", "模型挂", "模型问题",
	"status", "outage", "incident", "downtime", "is it down",
}

// Classifier decides query intent from lexical cues plus a
// knowledge-base signal. hasKnowledge reports whether the knowledge
// base has any lexical match for the query; it lets "pure status"
// questions skip retrieval entirely.
type Classifier struct {
	hasKnowledge func(query string) bool
}

// NewClassifier creates a classifier. hasKnowledge may be nil, in which
// case every non-status query is treated as ambiguous.
func NewClassifier(hasKnowledge func(query string) bool) *Classifier {
	return &Classifier{hasKnowledge: hasKnowledge}
}

// Classify maps the query to an intent. Queries carrying both a status
// cue and a knowledge signal, or neither, default to mixed.
func (c *Classifier) Classify(query string) Intent {
	status := hasStatusCue(query)
	knowledge := c.hasKnowledge != nil && c.hasKnowledge(query)

	switch {
	case status && knowledge:
		return IntentMixed
	case status:
		return IntentStatus
	case knowledge:
		return IntentKnowledge
	default:
		return IntentMixed
	}
}

func hasStatusCue(query string) bool {
	q := strings.ToLower(query)
	for _, cue := range statusCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}
