package services

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/models"
	"evidence-agent/internal/app/repositories"
)

const AnonymousUser = "anonymous"

// PreferenceRepo 偏好持久化
type PreferenceRepo interface {
	Get(userID string) (*models.UserPreference, error)
	Upsert(pref *models.UserPreference) error
}

// memoryPreferenceRepo 未配置数据库时在进程内保存偏好
type memoryPreferenceRepo struct {
	mu    sync.RWMutex
	prefs map[string]models.UserPreference
}

func newMemoryPreferenceRepo() *memoryPreferenceRepo {
	return &memoryPreferenceRepo{prefs: map[string]models.UserPreference{}}
}

func (r *memoryPreferenceRepo) Get(userID string) (*models.UserPreference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pref, ok := r.prefs[userID]
	if !ok {
		return nil, nil
	}
	return &pref, nil
}

func (r *memoryPreferenceRepo) Upsert(pref *models.UserPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.prefs[pref.UserID]
	current.UserID = pref.UserID
	for field, value := range repositories.PreferenceUpdates(pref) {
		v := value.(string)
		switch field {
		case "language":
			current.Language = v
		case "citation_style":
			current.CitationStyle = v
		case "response_speed":
			current.ResponseSpeed = v
		case "model":
			current.Model = v
		}
	}
	r.prefs[pref.UserID] = current
	return nil
}

type PreferenceService struct {
	repo         PreferenceRepo
	defaultModel string
}

// NewPreferenceService repo 为 nil 时使用进程内存储
func NewPreferenceService(repo PreferenceRepo, defaultModel string) *PreferenceService {
	if repo == nil {
		repo = newMemoryPreferenceRepo()
	}
	return &PreferenceService{repo: repo, defaultModel: defaultModel}
}

func (s *PreferenceService) defaults(userID string) models.UserPreference {
	return models.UserPreference{
		UserID:        userID,
		Language:      "zh",
		CitationStyle: "numbered",
		ResponseSpeed: "normal",
		Model:         s.defaultModel,
	}
}

// Get 返回用户偏好，未设置的字段使用默认值
func (s *PreferenceService) Get(userID string) (models.UserPreference, error) {
	if userID == "" {
		userID = AnonymousUser
	}
	pref := s.defaults(userID)
	stored, err := s.repo.Get(userID)
	if err != nil {
		return pref, err
	}
	if stored == nil {
		return pref, nil
	}
	if stored.Language != "" {
		pref.Language = stored.Language
	}
	if stored.CitationStyle != "" {
		pref.CitationStyle = stored.CitationStyle
	}
	if stored.ResponseSpeed != "" {
		pref.ResponseSpeed = stored.ResponseSpeed
	}
	if stored.Model != "" {
		pref.Model = stored.Model
	}
	return pref, nil
}

func (s *PreferenceService) Save(req models.PreferenceRequest) error {
	pref := req.Preferences
	pref.UserID = req.UserID
	if pref.UserID == "" {
		pref.UserID = AnonymousUser
	}
	log.Infof("saving preferences for user %s", pref.UserID)
	return s.repo.Upsert(&pref)
}
