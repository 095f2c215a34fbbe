package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/models"
	"evidence-agent/pkg/util"
)

// ReferenceStore 引用详情的共享缓存
type ReferenceStore interface {
	Get(ctx context.Context, id int) (models.EvidenceRecord, bool, error)
	Put(ctx context.Context, records []models.EvidenceRecord) error
	All(ctx context.Context) ([]models.EvidenceRecord, error)
}

func mockReference(id int) (models.EvidenceRecord, bool) {
	record, ok := util.MockReferences[id]
	return record, ok
}

func sortRecords(records []models.EvidenceRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}

// MemoryReferenceStore 进程内缓存，读多写少
type MemoryReferenceStore struct {
	mu      sync.RWMutex
	records map[int]models.EvidenceRecord
}

func NewMemoryReferenceStore() *MemoryReferenceStore {
	s := &MemoryReferenceStore{records: make(map[int]models.EvidenceRecord, len(util.MockReferences))}
	for id, record := range util.MockReferences {
		s.records[id] = record
	}
	return s
}

func (s *MemoryReferenceStore) Get(_ context.Context, id int) (models.EvidenceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return record, ok, nil
}

func (s *MemoryReferenceStore) Put(_ context.Context, records []models.EvidenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		s.records[record.ID] = record
	}
	return nil
}

func (s *MemoryReferenceStore) All(_ context.Context) ([]models.EvidenceRecord, error) {
	s.mu.RLock()
	records := make([]models.EvidenceRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	s.mu.RUnlock()
	sortRecords(records)
	return records, nil
}

const (
	referenceKeyPrefix = "evidence:ref:"
	referenceIDsKey    = "evidence:ref:ids"
	referenceLockKey   = "evidence:ref:lock"
)

// RedisReferenceStore 多实例共享的引用缓存，写入时持有分布式锁
type RedisReferenceStore struct {
	client redis.UniversalClient
	locks  *redsync.Redsync
	ttl    time.Duration
}

func NewRedisReferenceStore(client redis.UniversalClient, ttl time.Duration) *RedisReferenceStore {
	return &RedisReferenceStore{
		client: client,
		locks:  redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
	}
}

func referenceKey(id int) string {
	return referenceKeyPrefix + strconv.Itoa(id)
}

func (s *RedisReferenceStore) Get(ctx context.Context, id int) (models.EvidenceRecord, bool, error) {
	data, err := s.client.Get(ctx, referenceKey(id)).Bytes()
	if err == redis.Nil {
		record, ok := mockReference(id)
		return record, ok, nil
	}
	if err != nil {
		return models.EvidenceRecord{}, false, fmt.Errorf("get reference %d: %w", id, err)
	}

	var record models.EvidenceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.EvidenceRecord{}, false, fmt.Errorf("decode reference %d: %w", id, err)
	}
	return record, true, nil
}

func (s *RedisReferenceStore) Put(ctx context.Context, records []models.EvidenceRecord) error {
	if len(records) == 0 {
		return nil
	}
	// 每次写入独立的锁实例；释放不受请求取消影响
	mutex := s.locks.NewMutex(referenceLockKey, redsync.WithExpiry(5*time.Second), redsync.WithTries(8))
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("lock reference cache: %w", err)
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			log.Warnf("unlock reference cache: %v", err)
		}
	}()

	pipe := s.client.TxPipeline()
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode reference %d: %w", record.ID, err)
		}
		pipe.Set(ctx, referenceKey(record.ID), data, s.ttl)
		pipe.SAdd(ctx, referenceIDsKey, record.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache references: %w", err)
	}
	return nil
}

func (s *RedisReferenceStore) All(ctx context.Context) ([]models.EvidenceRecord, error) {
	members, err := s.client.SMembers(ctx, referenceIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}

	seen := make(map[int]bool, len(members))
	records := make([]models.EvidenceRecord, 0, len(members)+len(util.MockReferences))
	if len(members) > 0 {
		keys := make([]string, 0, len(members))
		for _, m := range members {
			keys = append(keys, referenceKeyPrefix+m)
		}
		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("load references: %w", err)
		}
		var expired []interface{}
		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				expired = append(expired, members[i])
				continue
			}
			var record models.EvidenceRecord
			if err := json.Unmarshal([]byte(str), &record); err != nil {
				log.Warnf("skip undecodable reference %s: %v", members[i], err)
				continue
			}
			seen[record.ID] = true
			records = append(records, record)
		}
		if len(expired) > 0 {
			s.client.SRem(ctx, referenceIDsKey, expired...)
		}
	}

	for id, record := range util.MockReferences {
		if !seen[id] {
			records = append(records, record)
		}
	}
	sortRecords(records)
	return records, nil
}
