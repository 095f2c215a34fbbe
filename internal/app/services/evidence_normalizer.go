package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/models"
	"evidence-agent/pkg/util"
)

const (
	DefaultPublishedDate  = "2024-01-01"
	DefaultRelevanceScore = 0.9
	UnknownJournal        = "Unknown Journal"
	recentYear            = 2022
)

var (
	yearTailPattern  = regexp.MustCompile(`\s+\d{4}.*$`)
	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	yearMonthDayExpr = regexp.MustCompile(`\b(\d{4})\s+([A-Za-z]+)\.?\s+(\d{1,2})\b`)
	yearMonthExpr    = regexp.MustCompile(`\b(\d{4})\s+([A-Za-z]+)`)
	yearPattern      = regexp.MustCompile(`\b(\d{4})\b`)
	doiPattern       = regexp.MustCompile(`(?i)doi:\s*(\S+)`)
	pmidPattern      = regexp.MustCompile(`pubmed\.ncbi\.nlm\.nih\.gov/(\d+)`)
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// NormalizeEvidence 将 grounding 原始证据转换为标准引用，按 id 升序；重复的 ref_num 只保留第一条
func NormalizeEvidence(entries []models.RawEvidence) []models.EvidenceRecord {
	return normalizeWith(entries, buildRecord)
}

func normalizeWith(entries []models.RawEvidence, build func(models.RawEvidence) models.EvidenceRecord) []models.EvidenceRecord {
	records := make([]models.EvidenceRecord, 0, len(entries))
	seen := make(map[int]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.RefNum]; dup {
			log.Warnf("duplicate evidence ref_num %d ignored", entry.RefNum)
			continue
		}
		seen[entry.RefNum] = struct{}{}

		record, err := normalizeEntry(entry, build)
		if err != nil {
			log.WithError(err).Warnf("evidence %d normalized with defaults", entry.RefNum)
		}
		records = append(records, record)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// normalizeEntry 单条失败时退回默认值，不影响其余条目
func normalizeEntry(entry models.RawEvidence, build func(models.RawEvidence) models.EvidenceRecord) (record models.EvidenceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = defaultRecord(entry)
			err = fmt.Errorf("%w: %v", ErrNormalization, r)
		}
	}()
	return build(entry), nil
}

func buildRecord(entry models.RawEvidence) models.EvidenceRecord {
	info := entry.PublicationInfo
	return models.EvidenceRecord{
		ID:               entry.RefNum,
		Title:            entry.Title,
		TitleLocalized:   entry.TitleZh,
		URL:              entry.URL,
		Authors:          entry.Author,
		Journal:          ExtractJournal(info),
		PublishedDate:    ExtractPublishedDate(info),
		DOI:              ExtractDOI(info),
		PMID:             ExtractPMID(entry.URL),
		Type:             ClassifyEvidence(entry.EvidenceClass),
		IsLeadingJournal: IsLeadingJournal(info),
		IsRecent:         IsRecent(info),
		RelevanceScore:   DefaultRelevanceScore,
		Abstract:         entry.Abstract,
		EvidenceClass:    entry.EvidenceClass,
	}
}

func defaultRecord(entry models.RawEvidence) models.EvidenceRecord {
	return models.EvidenceRecord{
		ID:             entry.RefNum,
		Title:          entry.Title,
		TitleLocalized: entry.TitleZh,
		URL:            entry.URL,
		Authors:        entry.Author,
		Journal:        UnknownJournal,
		PublishedDate:  DefaultPublishedDate,
		Type:           models.EvidenceResearch,
		RelevanceScore: DefaultRelevanceScore,
		Abstract:       entry.Abstract,
		EvidenceClass:  entry.EvidenceClass,
	}
}

// ExtractJournal 期刊名取第一个句点之前的部分，并去掉年份及其后内容
func ExtractJournal(info string) string {
	info = strings.TrimSpace(info)
	if info == "" {
		return UnknownJournal
	}
	journal, _, _ := strings.Cut(info, ".")
	journal = yearTailPattern.ReplaceAllString(strings.TrimSpace(journal), "")
	return strings.TrimSpace(journal)
}

// ExtractPublishedDate 按 YYYY-MM-DD、YYYY Month DD、YYYY Month、YYYY 的顺序匹配
func ExtractPublishedDate(info string) string {
	if m := isoDatePattern.FindStringSubmatch(info); m != nil {
		return formatDate(m[1], atoi(m[2]), atoi(m[3]))
	}
	if m := yearMonthDayExpr.FindStringSubmatch(info); m != nil {
		return formatDate(m[1], monthNumber(m[2]), atoi(m[3]))
	}
	if m := yearMonthExpr.FindStringSubmatch(info); m != nil {
		return formatDate(m[1], monthNumber(m[2]), 1)
	}
	if m := yearPattern.FindStringSubmatch(info); m != nil {
		return formatDate(m[1], 1, 1)
	}
	return DefaultPublishedDate
}

func formatDate(year string, month, day int) string {
	if month < 1 || month > 12 {
		month = 1
	}
	if day < 1 || day > 31 {
		day = 1
	}
	return fmt.Sprintf("%s-%02d-%02d", year, month, day)
}

// monthNumber 无法识别的月份按 1 月处理
func monthNumber(name string) int {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 1
	}
	if n, ok := monthNumbers[name[:3]]; ok {
		return n
	}
	return 1
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ExtractDOI 提取 doi: 之后的第一个 token
func ExtractDOI(info string) string {
	if m := doiPattern.FindStringSubmatch(info); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractPMID 从 PubMed URL 提取 PMID
func ExtractPMID(url string) string {
	if m := pmidPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// ClassifyEvidence 未知证据类别默认为 research
func ClassifyEvidence(class string) models.EvidenceType {
	class = strings.TrimSpace(class)
	if t, ok := util.EvidenceClassTypes[class]; ok {
		return t
	}
	for name, t := range util.EvidenceClassTypes {
		if strings.EqualFold(name, class) {
			return t
		}
	}
	return models.EvidenceResearch
}

func IsLeadingJournal(info string) bool {
	lower := strings.ToLower(info)
	for _, journal := range util.LeadingJournals {
		if strings.Contains(lower, strings.ToLower(journal)) {
			return true
		}
	}
	return false
}

// FirstYear 返回出现的第一个四位年份
func FirstYear(info string) (int, bool) {
	m := yearPattern.FindStringSubmatch(info)
	if m == nil {
		return 0, false
	}
	return atoi(m[1]), true
}

func IsRecent(info string) bool {
	year, ok := FirstYear(info)
	return ok && year >= recentYear
}
