package services

import (
	"strconv"

	"github.com/blevesearch/bleve"

	"evidence-agent/internal/app/models"
)

// ReferenceIndex 引用全文检索（内存 BM25）
type ReferenceIndex struct {
	bleve bleve.Index
}

type referenceDoc struct {
	Title   string `json:"title"`
	TitleZh string `json:"title_zh"`
	Authors string `json:"authors"`
	Journal string `json:"journal"`
}

func NewReferenceIndex() (*ReferenceIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &ReferenceIndex{bleve: index}, nil
}

// Index 写入或覆盖引用
func (x *ReferenceIndex) Index(records []models.EvidenceRecord) error {
	batch := x.bleve.NewBatch()
	for _, r := range records {
		doc := referenceDoc{
			Title:   r.Title,
			TitleZh: r.TitleLocalized,
			Authors: r.Authors,
			Journal: r.Journal,
		}
		if err := batch.Index(strconv.Itoa(r.ID), doc); err != nil {
			return err
		}
	}
	return x.bleve.Batch(batch)
}

// Search 按相关度返回引用 ID
func (x *ReferenceIndex) Search(q string, limit int) ([]int, error) {
	query := bleve.NewMatchQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, limit, 0, false)
	res, err := x.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (x *ReferenceIndex) Close() error {
	return x.bleve.Close()
}
