package config

var myopenai Openai

type Openai struct {
	ApiKey         string  `mapstructure:"apikey"`
	BaseURL        string  `mapstructure:"baseUrl"`
	Model          string  `mapstructure:"model"`
	SystemPrompt   string  `mapstructure:"systemPrompt"`
	FollowUpPrompt string  `mapstructure:"followUpPrompt"`
	Temperature    float64 `mapstructure:"temperature"`
	TopP           float64 `mapstructure:"topP"`
	MaxTokens      int64   `mapstructure:"maxTokens"`
	LLMFollowUps   bool    `mapstructure:"llmFollowUps"`
}

func GetOpenaiConf() Openai {
	return myopenai
}

const defaultSystemPrompt = `你是一个专业的医学问答助手，基于循证医学原则回答问题。

请遵循以下要求：
1. 基于最新的医学文献和临床指南提供准确的医学信息
2. 在回答中使用上标引用格式，如 ^[1]^、^[2]^ 等
3. 提供具体的研究数据和统计信息
4. 明确区分不同证据等级（如RCT、系统评价、专家共识等）
5. 对于有争议的话题，要平衡展示不同观点
6. 强调个体化治疗的重要性
7. 使用专业但易懂的医学术语
8. 在适当时候提醒咨询专业医生

回答格式要求：
- 开头直接给出明确的结论
- 按段落组织内容，每段聚焦一个要点
- 使用引用标记标注信息来源
- 结尾可以提供相关的后续问题建议`

const defaultFollowUpPrompt = `基于以下医学问答对话，生成3个相关的后续问题：

原始问题：{{question}}
回答内容：{{answer}}...

请生成3个具体、实用的后续问题，格式为简洁的问句。每个问题一行，不需要编号。`
