package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sjsage522/blogworker/pkg/errors"
	"sjsage522/blogworker/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttl   map[string]time.Duration
}

var _ cache.CacheService = (*MockCacheService)(nil)

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttl:   make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttl[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	delete(m.ttl, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// cardOutcome scripts what one OpenCard call returns
type cardOutcome struct {
	article *Article
	err     error
}

// fakeSession replays scripted listing behaviour without a browser
type fakeSession struct {
	mu sync.Mutex

	cards       int
	outcomes    map[int][]cardOutcome
	openErr     error
	tabErr      error
	waitErr     error
	detail      []ContentBlock
	detailErr   error
	panicAtCard int

	openCalls    map[int]int
	tabSelects   int
	releaseCalls int
	detailURLs   []string
}

var _ Session = (*fakeSession)(nil)

func newFakeSession(cards int) *fakeSession {
	return &fakeSession{
		cards:       cards,
		outcomes:    make(map[int][]cardOutcome),
		openCalls:   make(map[int]int),
		panicAtCard: -1,
	}
}

// script queues outcomes for successive attempts at index
func (f *fakeSession) script(index int, outcomes ...cardOutcome) {
	f.outcomes[index] = append(f.outcomes[index], outcomes...)
}

func (f *fakeSession) OpenListing(ctx context.Context) error {
	return f.openErr
}

func (f *fakeSession) SelectLatestTab(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabSelects++
	return f.tabErr
}

func (f *fakeSession) WaitForCards(ctx context.Context) error {
	return f.waitErr
}

func (f *fakeSession) CardCount(ctx context.Context) (int, error) {
	return f.cards, nil
}

func (f *fakeSession) OpenCard(ctx context.Context, index int) (*Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index == f.panicAtCard {
		panic("renderer crashed")
	}
	attempt := f.openCalls[index]
	f.openCalls[index]++
	if index >= f.cards {
		return nil, nil
	}
	if queued := f.outcomes[index]; attempt < len(queued) {
		return queued[attempt].article, queued[attempt].err
	}
	return testArticle(index), nil
}

func (f *fakeSession) ExtractDetail(ctx context.Context, articleURL string) ([]ContentBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailURLs = append(f.detailURLs, articleURL)
	return f.detail, f.detailErr
}

func (f *fakeSession) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
}

func testArticle(index int) *Article {
	articleURL := fmt.Sprintf("https://developer.huawei.com/consumer/cn/blog/topic/%d", index)
	return &Article{
		ID:       ArticleID(articleURL),
		Title:    fmt.Sprintf("Article %d", index),
		URL:      articleURL,
		Content:  []ContentBlock{{Type: BlockText, Value: fmt.Sprintf("body %d", index)}},
		Fidelity: FidelityFull,
	}
}

func staleErr() error {
	return errors.NewStaleElement("test", "card re-rendered", nil)
}

func timeoutErr() error {
	return errors.NewNavigationTimeout("test", "wait for detail url", context.DeadlineExceeded)
}

func launcherFor(s Session) SessionLauncher {
	return func(ctx context.Context) (Session, error) {
		return s, nil
	}
}

func testCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{
		BaseURL:     "https://developer.huawei.com",
		ListURL:     "https://developer.huawei.com/consumer/cn/blog/recommended",
		Provider:    "Huawei Developer Blog",
		Category:    "Huawei Developer",
		MaxArticles: 5,
		BatchSize:   2,
		CacheKey:    "blog_cooldown",
		BlockTime:   time.Minute,
	}
}
