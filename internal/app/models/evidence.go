package models

// EvidenceType 证据类型
type EvidenceType string

const (
	EvidenceResearch     EvidenceType = "research"
	EvidenceMetaAnalysis EvidenceType = "meta-analysis"
	EvidenceReview       EvidenceType = "review"
	EvidenceGuideline    EvidenceType = "guideline"
)

// RawEvidence 上游 grounding 中的原始证据条目
type RawEvidence struct {
	RefNum          int    `json:"ref_num"`
	Title           string `json:"title"`
	TitleZh         string `json:"title_zh"`
	URL             string `json:"url"`
	Author          string `json:"author"`
	PublicationInfo string `json:"publication_info"`
	EvidenceClass   string `json:"evidence_class"`
	Abstract        string `json:"abstract"`
}

// EvidenceRecord 标准化后的引用文献
type EvidenceRecord struct {
	ID               int          `json:"id"`
	Title            string       `json:"title"`
	TitleLocalized   string       `json:"title_zh"`
	URL              string       `json:"url"`
	Authors          string       `json:"authors"`
	Journal          string       `json:"journal"`
	PublishedDate    string       `json:"publishedDate"`
	DOI              string       `json:"doi"`
	PMID             string       `json:"pmid"`
	Type             EvidenceType `json:"type"`
	IsLeadingJournal bool         `json:"isLeading"`
	IsRecent         bool         `json:"isNew"`
	RelevanceScore   float64      `json:"relevanceScore"`
	Abstract         string       `json:"abstract,omitempty"`
	EvidenceClass    string       `json:"evidenceClass,omitempty"`
}

// ReferenceDetail 引用详情（带富化信息）
type ReferenceDetail struct {
	EvidenceRecord
	AccessedDate string  `json:"accessed_date"`
	ImpactFactor float64 `json:"impact_factor"`
	QualityScore float64 `json:"quality_score"`
}

// ReferenceStatistics 引用统计
type ReferenceStatistics struct {
	TotalReferences int            `json:"total_references"`
	ByType          map[string]int `json:"by_type"`
	ByJournal       map[string]int `json:"by_journal"`
	ByYear          map[string]int `json:"by_year"`
	CacheSize       int            `json:"cache_size"`
	LastUpdated     string         `json:"last_updated"`
}

// Segment 全文按引用分段的结果
type Segment struct {
	Text      string `json:"text"`
	Citations []int  `json:"citations"`
	Type      string `json:"type"`
}

const (
	SegmentContent      = "content"
	SegmentCitedContent = "cited_content"
)
