package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/voyagen/confsync/internal/clock"
	"github.com/voyagen/confsync/internal/models"
)

// Memory is an in-process Store. Timestamps come from the injected clock so
// change detection can be driven deterministically. Podcast transactions
// work on a copy of the podcast tables that replaces the original only on
// success.
type Memory struct {
	clock clock.Clock

	mu         sync.RWMutex
	podcast    podcastTables
	conference conferenceTables
	requests   map[int64]models.PodcastRequest
	requestSeq int64
}

var _ Store = (*Memory)(nil)

type memCategory struct {
	id        int64
	updatedAt time.Time
}

type mapKey struct {
	owner    int64
	category int64
}

type podcastTables struct {
	channelSeq  int64
	episodeSeq  int64
	categorySeq [2]int64

	channels      map[int64]models.Channel
	episodes      map[int64]models.Episode
	categories    [2]map[string]memCategory
	categoryNames [2]map[int64]string
	channelMap    map[mapKey]time.Time
	episodeMap    map[mapKey]time.Time
}

type conferenceTables struct {
	sessions          map[string]models.Session
	sessionSpeakers   map[models.SessionSpeaker]time.Time
	sessionCategories map[models.SessionCategory]time.Time
	speakers          map[string]models.Speaker
	rooms             map[int64]models.Room
	categories        map[int64]models.ConferenceCategory
}

func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.System{}
	}
	return &Memory{
		clock: c,
		podcast: podcastTables{
			channels:      map[int64]models.Channel{},
			episodes:      map[int64]models.Episode{},
			categories:    [2]map[string]memCategory{{}, {}},
			categoryNames: [2]map[int64]string{{}, {}},
			channelMap:    map[mapKey]time.Time{},
			episodeMap:    map[mapKey]time.Time{},
		},
		conference: conferenceTables{
			sessions:          map[string]models.Session{},
			sessionSpeakers:   map[models.SessionSpeaker]time.Time{},
			sessionCategories: map[models.SessionCategory]time.Time{},
			speakers:          map[string]models.Speaker{},
			rooms:             map[int64]models.Room{},
			categories:        map[int64]models.ConferenceCategory{},
		},
		requests: map[int64]models.PodcastRequest{},
	}
}

func (t podcastTables) clone() podcastTables {
	out := t
	out.channels = maps.Clone(t.channels)
	out.episodes = maps.Clone(t.episodes)
	out.channelMap = maps.Clone(t.channelMap)
	out.episodeMap = maps.Clone(t.episodeMap)
	for i := range t.categories {
		out.categories[i] = maps.Clone(t.categories[i])
		out.categoryNames[i] = maps.Clone(t.categoryNames[i])
	}
	return out
}

// Watermark waits for any open transaction, so every stamp already taken is
// at or before the returned instant.
func (m *Memory) Watermark(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock.Now(), nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() {}

// WithPodcastTx serializes transactions. Readers block until fn returns.
func (m *Memory) WithPodcastTx(ctx context.Context, fn func(tx PodcastTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.podcast.clone()
	if err := fn(&memTx{tables: &draft, now: m.clock.Now}); err != nil {
		return err
	}
	m.podcast = draft
	return nil
}

type memTx struct {
	tables *podcastTables
	now    func() time.Time
}

func (t *memTx) InsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.tables.channelSeq++
	row := *ch
	row.ID = t.tables.channelSeq
	row.UpdatedAt = t.now()
	t.tables.channels[row.ID] = row
	return row.ID, nil
}

func (t *memTx) ResolveCategory(ctx context.Context, ns models.Namespace, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if ns != models.NamespaceChannel && ns != models.NamespaceEpisode {
		return 0, fmt.Errorf("unknown category namespace %d", ns)
	}
	now := t.now()
	if c, ok := t.tables.categories[ns][name]; ok {
		// Same effect as the no-op upsert firing the updated_at trigger.
		c.updatedAt = now
		t.tables.categories[ns][name] = c
		return c.id, nil
	}
	t.tables.categorySeq[ns]++
	id := t.tables.categorySeq[ns]
	t.tables.categories[ns][name] = memCategory{id: id, updatedAt: now}
	t.tables.categoryNames[ns][id] = name
	return id, nil
}

func (t *memTx) MapChannelCategory(ctx context.Context, channelID, categoryID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.tables.channels[channelID]; !ok {
		return fmt.Errorf("channel %d does not exist", channelID)
	}
	if _, ok := t.tables.categoryNames[models.NamespaceChannel][categoryID]; !ok {
		return fmt.Errorf("channel category %d does not exist", categoryID)
	}
	key := mapKey{owner: channelID, category: categoryID}
	if _, ok := t.tables.channelMap[key]; !ok {
		t.tables.channelMap[key] = t.now()
	}
	return nil
}

func (t *memTx) InsertEpisode(ctx context.Context, ep *models.Episode) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, ok := t.tables.channels[ep.ChannelID]; !ok {
		return 0, fmt.Errorf("channel %d does not exist", ep.ChannelID)
	}
	t.tables.episodeSeq++
	row := *ep
	row.ID = t.tables.episodeSeq
	row.UpdatedAt = t.now()
	t.tables.episodes[row.ID] = row
	return row.ID, nil
}

func (t *memTx) MapEpisodeCategory(ctx context.Context, episodeID, categoryID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.tables.episodes[episodeID]; !ok {
		return fmt.Errorf("episode %d does not exist", episodeID)
	}
	if _, ok := t.tables.categoryNames[models.NamespaceEpisode][categoryID]; !ok {
		return fmt.Errorf("episode category %d does not exist", categoryID)
	}
	key := mapKey{owner: episodeID, category: categoryID}
	if _, ok := t.tables.episodeMap[key]; !ok {
		t.tables.episodeMap[key] = t.now()
	}
	return nil
}

// --- podcast reads ---

func (m *Memory) ChannelIDsChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, ch := range m.podcast.channels {
		if !ch.UpdatedAt.Before(since) {
			ids = append(ids, id)
		}
	}
	return sortedUnique(ids), ctx.Err()
}

func (m *Memory) ChannelIDsWithEpisodesChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, ep := range m.podcast.episodes {
		if !ep.UpdatedAt.Before(since) {
			ids = append(ids, ep.ChannelID)
		}
	}
	return sortedUnique(ids), ctx.Err()
}

func (m *Memory) ChannelIDsWithCategoryMappingsChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mappedOwnersSince(m.podcast.channelMap, since), ctx.Err()
}

func (m *Memory) EpisodeIDsWithCategoryMappingsChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mappedOwnersSince(m.podcast.episodeMap, since), ctx.Err()
}

func (m *Memory) ChannelIDsForEpisodes(ctx context.Context, episodeIDs []int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for _, id := range episodeIDs {
		if ep, ok := m.podcast.episodes[id]; ok {
			ids = append(ids, ep.ChannelID)
		}
	}
	return sortedUnique(ids), ctx.Err()
}

func (m *Memory) ListChannelIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedUnique(slices.Collect(maps.Keys(m.podcast.channels))), ctx.Err()
}

func (m *Memory) ChannelsByIDs(ctx context.Context, ids []int64) ([]models.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Channel
	for _, id := range sortedUnique(slices.Clone(ids)) {
		if ch, ok := m.podcast.channels[id]; ok {
			out = append(out, ch)
		}
	}
	return out, ctx.Err()
}

func (m *Memory) EpisodesByChannelIDs(ctx context.Context, channelIDs []int64) ([]models.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[int64]bool, len(channelIDs))
	for _, id := range channelIDs {
		want[id] = true
	}
	var out []models.Episode
	for _, ep := range m.podcast.episodes {
		if want[ep.ChannelID] {
			out = append(out, ep)
		}
	}
	slices.SortFunc(out, func(a, b models.Episode) int {
		if a.ChannelID != b.ChannelID {
			return cmp.Compare(a.ChannelID, b.ChannelID)
		}
		if c := b.PubDate.Compare(a.PubDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, ctx.Err()
}

func (m *Memory) ChannelCategoryLinks(ctx context.Context, channelIDs []int64) ([]models.CategoryLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return categoryLinks(m.podcast.channelMap, m.podcast.categoryNames[models.NamespaceChannel], channelIDs), ctx.Err()
}

func (m *Memory) EpisodeCategoryLinks(ctx context.Context, episodeIDs []int64) ([]models.CategoryLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return categoryLinks(m.podcast.episodeMap, m.podcast.categoryNames[models.NamespaceEpisode], episodeIDs), ctx.Err()
}

func mappedOwnersSince(mapping map[mapKey]time.Time, since time.Time) []int64 {
	var ids []int64
	for key, updated := range mapping {
		if !updated.Before(since) {
			ids = append(ids, key.owner)
		}
	}
	return sortedUnique(ids)
}

func categoryLinks(mapping map[mapKey]time.Time, names map[int64]string, ownerIDs []int64) []models.CategoryLink {
	want := make(map[int64]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		want[id] = true
	}
	var out []models.CategoryLink
	for key := range mapping {
		if want[key.owner] {
			out = append(out, models.CategoryLink{OwnerID: key.owner, Name: names[key.category]})
		}
	}
	slices.SortFunc(out, func(a, b models.CategoryLink) int {
		if a.OwnerID != b.OwnerID {
			return cmp.Compare(a.OwnerID, b.OwnerID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func sortedUnique(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}

// --- conference ---

func (m *Memory) SessionsChangedSince(ctx context.Context, since time.Time) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Session
	for _, s := range m.conference.sessions {
		if !s.UpdatedAt.Before(since) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b models.Session) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, ctx.Err()
}

func (m *Memory) SessionSpeakers(ctx context.Context, sessionIDs []string) ([]models.SessionSpeaker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SessionSpeaker
	for link := range m.conference.sessionSpeakers {
		if slices.Contains(sessionIDs, link.SessionID) {
			out = append(out, link)
		}
	}
	slices.SortFunc(out, func(a, b models.SessionSpeaker) int {
		if c := strings.Compare(a.SessionID, b.SessionID); c != 0 {
			return c
		}
		return strings.Compare(a.SpeakerID, b.SpeakerID)
	})
	return out, ctx.Err()
}

func (m *Memory) SessionCategories(ctx context.Context, sessionIDs []string) ([]models.SessionCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SessionCategory
	for link := range m.conference.sessionCategories {
		if slices.Contains(sessionIDs, link.SessionID) {
			out = append(out, link)
		}
	}
	slices.SortFunc(out, func(a, b models.SessionCategory) int {
		if c := strings.Compare(a.SessionID, b.SessionID); c != 0 {
			return c
		}
		return cmp.Compare(a.CategoryID, b.CategoryID)
	})
	return out, ctx.Err()
}

func (m *Memory) SpeakersChangedSince(ctx context.Context, since time.Time) ([]models.Speaker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Speaker
	for _, s := range m.conference.speakers {
		if !s.UpdatedAt.Before(since) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b models.Speaker) int { return strings.Compare(a.ID, b.ID) })
	return out, ctx.Err()
}

func (m *Memory) RoomsChangedSince(ctx context.Context, since time.Time) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Room
	for _, r := range m.conference.rooms {
		if !r.UpdatedAt.Before(since) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.Room) int { return cmp.Compare(a.ID, b.ID) })
	return out, ctx.Err()
}

func (m *Memory) CategoriesChangedSince(ctx context.Context, since time.Time) ([]models.ConferenceCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ConferenceCategory
	for _, c := range m.conference.categories {
		if !c.UpdatedAt.Before(since) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.ConferenceCategory) int { return cmp.Compare(a.ID, b.ID) })
	return out, ctx.Err()
}

// --- podcast requests ---

func (m *Memory) CreatePodcastRequest(ctx context.Context, req *models.PodcastRequest) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestSeq++
	row := *req
	row.ID = m.requestSeq
	if row.Status == "" {
		row.Status = models.RequestStatusPending
	}
	created := m.clock.Now()
	row.CreatedAt = &created
	m.requests[row.ID] = row
	return row.ID, nil
}

func (m *Memory) GetPodcastRequest(ctx context.Context, id int64) (*models.PodcastRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, ctx.Err()
}

func (m *Memory) UpdatePodcastRequestStatus(ctx context.Context, id int64, status, errMsg string, channelID *int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	row.Status = status
	row.Error = errMsg
	if channelID != nil {
		row.ChannelID = channelID
	}
	m.requests[id] = row
	return nil
}

// --- seeding ---
//
// The conference tables are maintained outside this service; these helpers
// stand in for that editor in tests and for `serve --memory`. Every write
// stamps updated_at from the clock the way the database trigger would.

func (m *Memory) PutSession(s models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.clock.Now()
	m.conference.sessions[s.ID] = s
}

func (m *Memory) LinkSessionSpeaker(sessionID, speakerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conference.sessionSpeakers[models.SessionSpeaker{SessionID: sessionID, SpeakerID: speakerID}] = m.clock.Now()
}

func (m *Memory) LinkSessionCategory(sessionID string, categoryID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conference.sessionCategories[models.SessionCategory{SessionID: sessionID, CategoryID: categoryID}] = m.clock.Now()
}

func (m *Memory) PutSpeaker(s models.Speaker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.clock.Now()
	m.conference.speakers[s.ID] = s
}

func (m *Memory) PutRoom(r models.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.UpdatedAt = m.clock.Now()
	m.conference.rooms[r.ID] = r
}

func (m *Memory) PutConferenceCategory(c models.ConferenceCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.UpdatedAt = m.clock.Now()
	m.conference.categories[c.ID] = c
}

// TouchChannel, TouchEpisode and TouchEpisodeCategoryMapping emulate an
// external UPDATE of one podcast row.

func (m *Memory) TouchChannel(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.podcast.channels[id]
	if !ok {
		return ErrNotFound
	}
	ch.UpdatedAt = m.clock.Now()
	m.podcast.channels[id] = ch
	return nil
}

func (m *Memory) TouchEpisode(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.podcast.episodes[id]
	if !ok {
		return ErrNotFound
	}
	ep.UpdatedAt = m.clock.Now()
	m.podcast.episodes[id] = ep
	return nil
}

func (m *Memory) TouchEpisodeCategoryMapping(episodeID int64, categoryName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.podcast.categories[models.NamespaceEpisode][categoryName]
	if !ok {
		return ErrNotFound
	}
	key := mapKey{owner: episodeID, category: cat.id}
	if _, ok := m.podcast.episodeMap[key]; !ok {
		return ErrNotFound
	}
	m.podcast.episodeMap[key] = m.clock.Now()
	return nil
}

// CategoryCount returns how many categories exist in the namespace.
func (m *Memory) CategoryCount(ns models.Namespace) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.podcast.categories[ns])
}

// CategoryID looks up a category by exact name.
func (m *Memory) CategoryID(ns models.Namespace, name string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.podcast.categories[ns][name]
	return c.id, ok
}

// Counts reports row counts of the podcast tables.
func (m *Memory) Counts() (channels, episodes, channelMappings, episodeMappings int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.podcast.channels), len(m.podcast.episodes), len(m.podcast.channelMap), len(m.podcast.episodeMap)
}
