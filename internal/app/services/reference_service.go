package services

import (
	"context"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/models"
	"evidence-agent/pkg/util"
)

const (
	DefaultSearchLimit = 10
	maxSearchLimit     = 50
	topJournals        = 10
)

// ReferenceService 引用详情、检索与统计
type ReferenceService struct {
	store ReferenceStore
	index *ReferenceIndex
	clock util.Clock
}

func NewReferenceService(store ReferenceStore, index *ReferenceIndex, clock util.Clock) *ReferenceService {
	if clock == nil {
		clock = util.SystemClock
	}
	return &ReferenceService{store: store, index: index, clock: clock}
}

// Warm 将缓存中已有的引用写入索引
func (s *ReferenceService) Warm(ctx context.Context) error {
	records, err := s.store.All(ctx)
	if err != nil {
		return err
	}
	return s.index.Index(records)
}

// Cache 缓存会话加载的引用，作为编排器的 ReferencesHook 使用
func (s *ReferenceService) Cache(ctx context.Context, records []models.EvidenceRecord) {
	if len(records) == 0 {
		return
	}
	if err := s.store.Put(ctx, records); err != nil {
		log.Errorf("cache references failed: %v", err)
		return
	}
	if err := s.index.Index(records); err != nil {
		log.Errorf("index references failed: %v", err)
		return
	}
	log.Infof("cached %d references", len(records))
}

// Detail 返回富化后的引用详情
func (s *ReferenceService) Detail(ctx context.Context, id int) (models.ReferenceDetail, bool, error) {
	record, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		return models.ReferenceDetail{}, ok, err
	}
	return s.Enrich(record), true, nil
}

func (s *ReferenceService) Enrich(record models.EvidenceRecord) models.ReferenceDetail {
	detail := models.ReferenceDetail{
		EvidenceRecord: record,
		AccessedDate:   s.clock.Now().Format(util.TimestampLayout),
		ImpactFactor:   ImpactFactor(record.Journal),
	}
	detail.QualityScore = QualityScore(detail, s.clock.Now().Year())
	return detail
}

// ImpactFactor 期刊影响因子，按名单顺序做忽略大小写的子串匹配
func ImpactFactor(journal string) float64 {
	lower := strings.ToLower(journal)
	for _, entry := range util.JournalImpactFactors {
		if strings.Contains(lower, strings.ToLower(entry.Journal)) {
			return entry.Factor
		}
	}
	return util.DefaultImpactFactor
}

// QualityScore 质量评分（0-10）：基础 5 分，按影响因子、证据类型、发表时间与顶级期刊加分
func QualityScore(d models.ReferenceDetail, currentYear int) float64 {
	score := 5.0

	switch {
	case d.ImpactFactor > 10:
		score += 2.0
	case d.ImpactFactor > 5:
		score += 1.0
	case d.ImpactFactor > 2:
		score += 0.5
	}

	switch d.Type {
	case models.EvidenceMetaAnalysis:
		score += 1.5
	case models.EvidenceResearch:
		score += 1.0
	case models.EvidenceGuideline:
		score += 1.2
	}

	if year, ok := publishedYear(d.PublishedDate); ok {
		switch {
		case year >= currentYear-1:
			score += 1.0
		case year >= currentYear-3:
			score += 0.5
		}
	}

	if d.IsLeadingJournal {
		score += 1.0
	}

	if score > 10 {
		return 10
	}
	return score
}

func publishedYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	return year, err == nil
}

// Search 全文检索缓存中的引用，limit<=0 使用默认值
func (s *ReferenceService) Search(ctx context.Context, q string, limit int) ([]models.EvidenceRecord, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.EvidenceRecord{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	ids, err := s.index.Search(q, limit)
	if err != nil {
		return nil, err
	}
	results := make([]models.EvidenceRecord, 0, len(ids))
	for _, id := range ids {
		record, ok, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, record)
		}
	}
	return results, nil
}

// Statistics 统计缓存中的引用
func (s *ReferenceService) Statistics(ctx context.Context) (models.ReferenceStatistics, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return models.ReferenceStatistics{}, err
	}

	stats := models.ReferenceStatistics{
		TotalReferences: len(records),
		ByType:          map[string]int{},
		ByYear:          map[string]int{},
		CacheSize:       len(records),
		LastUpdated:     s.clock.Now().Format(util.TimestampLayout),
	}
	journals := map[string]int{}
	for _, r := range records {
		refType := string(r.Type)
		if refType == "" {
			refType = "unknown"
		}
		stats.ByType[refType]++

		journal := r.Journal
		if journal == "" {
			journal = "unknown"
		}
		journals[journal]++

		year := "unknown"
		if len(r.PublishedDate) >= 4 {
			year = r.PublishedDate[:4]
		}
		stats.ByYear[year]++
	}
	stats.ByJournal = topCounts(journals, topJournals)
	return stats, nil
}

// topCounts 取数量最多的 n 项，数量相同按名称排序
func topCounts(counts map[string]int, n int) map[string]int {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	top := make(map[string]int, len(names))
	for _, name := range names {
		top[name] = counts[name]
	}
	return top
}
