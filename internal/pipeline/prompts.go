package pipeline

// Prompt and canned-reply text. Replies about system state must stay
// grounded in monitor data; the model is instructed to never claim
// health it cannot see.

const systemPrompt = `你是智能客服监控助手，专门负责处理用户咨询和系统监控。

你的职责：
1. 基于知识库准确回答业务问题
2. 诚实反映系统状态，不编造信息
3. 遇到系统问题时及时告知用户

约束：
- 禁止在系统异常时说"系统正常"
- 禁止凭空编造系统状态信息
- 禁止给出知识库和监控数据之外的承诺`

const (
	// replyKnowledgePrefix prefixes a knowledge answer served without
	// model refinement.
	replyKnowledgePrefix = "根据平台信息："

	// replyApologetic is the last-resort answer when neither the
	// knowledge base nor any model can produce content.
	replyApologetic = "很抱歉，我现在无法回答这个问题。您可以尝试联系客服获取更多帮助，或稍后重试。"

	// replyRetrievalDown stands in for a retrieve task that failed
	// outright (for example at the request deadline).
	replyRetrievalDown = "抱歉，知识检索暂时不可用，请稍后重试。"

	// stateHealthy is the honest healthy-state summary.
	stateHealthy = "根据最新的监控数据显示，系统各项指标目前运行正常，API响应时间在正常范围内。如果您遇到具体问题，请详细描述，我们会进一步协助您。"

	// stateWatching describes a warning-level state that has not crossed
	// the alert line. It never claims normal operation.
	stateWatching = "根据监控数据，系统近期出现了部分警告信息，核心服务目前可用，我们正在持续关注相关指标。如果您遇到具体问题，请详细描述。"
)
