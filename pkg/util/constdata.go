package util

import "evidence-agent/internal/app/models"

// LeadingJournals 顶级期刊名单（按子串、忽略大小写匹配）
var LeadingJournals = []string{
	"Nature", "Science", "Cell", "Lancet", "NEJM", "New England Journal of Medicine",
	"JAMA", "BMJ", "British Medical Journal", "Cochrane", "PLoS Medicine",
	"Annals of Internal Medicine", "Journal of Clinical Investigation",
	"Nature Medicine", "Nature Reviews", "Cell Medicine",
}

// EvidenceClassTypes evidence_class 到证据类型的映射
var EvidenceClassTypes = map[string]models.EvidenceType{
	"RCT":                         models.EvidenceResearch,
	"Randomized Controlled Trial": models.EvidenceResearch,
	"Case Study":                  models.EvidenceResearch,
	"Cohort Study":                models.EvidenceResearch,
	"Cross-sectional Study":       models.EvidenceResearch,
	"Systematic Review":           models.EvidenceMetaAnalysis,
	"Meta-Analysis":               models.EvidenceMetaAnalysis,
	"Literature Review":           models.EvidenceReview,
	"Narrative Review":            models.EvidenceReview,
	"Guideline":                   models.EvidenceGuideline,
	"Clinical Guideline":          models.EvidenceGuideline,
}

// JournalImpactFactors 期刊影响因子（模拟数据），按顺序做子串匹配
var JournalImpactFactors = []struct {
	Journal string
	Factor  float64
}{
	{"Nature", 49.962},
	{"Science", 47.728},
	{"Cell", 41.582},
	{"Lancet", 79.321},
	{"NEJM", 91.245},
	{"JAMA", 56.272},
	{"BMJ", 39.890},
	{"Cochrane Database Syst Rev", 11.874},
	{"Periodontol 2000", 6.827},
	{"Antibiotics (Basel)", 4.927},
}

const DefaultImpactFactor = 2.5

// MockReferences 内置的引用数据，未命中缓存时作为兜底
var MockReferences = map[int]models.EvidenceRecord{
	1: {
		ID:             1,
		Title:          "Antibiotics or No Antibiotics, That Is the Question: An Update on Efficient and Effective Use of Antibiotics in Dental Practice",
		TitleLocalized: "抗生素或没有抗生素，这是一个问题: 在牙科实践中有效和有效使用抗生素的更新",
		URL:            "https://pubmed.ncbi.nlm.nih.gov/34065113/",
		Authors:        "Buonavoglia A, Leone P, Solimando AG, et al.",
		Journal:        "Antibiotics (Basel)",
		PublishedDate:  "2021-05-09",
		DOI:            "10.3390/antibiotics10050550",
		PMID:           "34065113",
		Type:           models.EvidenceReview,
		RelevanceScore: 0.95,
		Abstract:       "This review discusses the current evidence on antibiotic use in dental practice...",
		EvidenceClass:  "Literature Review",
	},
	2: {
		ID:               2,
		Title:            "The role of antibiotics in preventing surgical complications in periodontology and implant dentistry",
		TitleLocalized:   "抗生素在预防牙周病学和种植牙科手术并发症中的作用",
		URL:              "https://pubmed.ncbi.nlm.nih.gov/40665923/",
		Authors:          "Chen Z, Chiou LL, Calatrava J, Wang HL",
		Journal:          "Periodontol 2000",
		PublishedDate:    "2025-07-16",
		DOI:              "10.1111/prd.12636",
		PMID:             "40665923",
		Type:             models.EvidenceMetaAnalysis,
		IsLeadingJournal: true,
		IsRecent:         true,
		RelevanceScore:   0.98,
		Abstract:         "Systematic review of antibiotic prophylaxis in periodontal and implant surgery...",
		EvidenceClass:    "Systematic Review",
	},
}

// 后续问题关键词表
var FollowUpTable = []struct {
	Keywords  []string
	Questions []string
}{
	{
		Keywords: []string{"种植牙", "种植体"},
		Questions: []string{
			"种植牙手术后的护理要点有哪些？",
			"种植牙的成功率和影响因素是什么？",
			"种植牙术后可能出现哪些并发症？",
		},
	},
	{
		Keywords: []string{"抗生素"},
		Questions: []string{
			"抗生素耐药性的预防措施有哪些？",
			"如何选择合适的抗生素类型？",
			"抗生素使用的最佳时机是什么时候？",
		},
	},
	{
		Keywords: []string{"高血压"},
		Questions: []string{
			"高血压患者的生活方式干预建议？",
			"高血压药物治疗的个体化原则？",
			"高血压并发症的预防策略？",
		},
	},
}

var DefaultFollowUps = []string{
	"这种治疗方法的最新研究进展如何？",
	"对于特殊人群有什么注意事项？",
	"有哪些替代治疗方案可以选择？",
}

var GenericFollowUps = []string{
	"这种治疗方法有哪些潜在的副作用？",
	"对于特殊人群（如孕妇、老年人）有什么特别的注意事项？",
	"最新的研究进展如何？",
}
