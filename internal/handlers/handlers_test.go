package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tuturuuu/meetsync/internal/guest"
	"github.com/tuturuuu/meetsync/internal/model"
	"github.com/tuturuuu/meetsync/libs/auth"
)

const testSecret = "handler-test-secret"

type fakePlanStore struct {
	plans        map[string]model.Plan
	participants map[string][]model.Participant
	nextID       int
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{
		plans:        map[string]model.Plan{},
		participants: map[string][]model.Participant{},
	}
}

func (s *fakePlanStore) Create(_ context.Context, plan *model.Plan) (string, error) {
	s.nextID++
	id := fmt.Sprintf("plan-%d", s.nextID)
	plan.ID = id
	plan.CreatedAt = time.Now()
	s.plans[id] = *plan
	return id, nil
}

func (s *fakePlanStore) Get(_ context.Context, id string) (model.Plan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return model.Plan{}, pgx.ErrNoRows
	}
	return plan, nil
}

func (s *fakePlanStore) ListParticipants(_ context.Context, planID string) ([]model.Participant, error) {
	return s.participants[planID], nil
}

type fakeBlockStore struct {
	blocks []model.TimeBlock
	nextID int
	onLoad func() // runs once, after LoadBlocks captures its snapshot
}

func (s *fakeBlockStore) SaveBlock(_ context.Context, block *model.TimeBlock) (string, error) {
	s.nextID++
	block.ID = fmt.Sprintf("block-%d", s.nextID)
	s.blocks = append(s.blocks, *block)
	return block.ID, nil
}

func (s *fakeBlockStore) LoadBlocks(_ context.Context, planID string) ([]model.TimeBlock, error) {
	var out []model.TimeBlock
	for _, b := range s.blocks {
		if b.PlanID == planID {
			out = append(out, b)
		}
	}
	if s.onLoad != nil {
		hook := s.onLoad
		s.onLoad = nil
		hook()
	}
	return out, nil
}

func (s *fakeBlockStore) DeleteBlocksForParticipant(_ context.Context, planID, participantID string, isGuest bool) (int64, error) {
	var kept []model.TimeBlock
	var deleted int64
	for _, b := range s.blocks {
		if b.PlanID == planID && b.ParticipantID == participantID && b.IsGuest == isGuest {
			deleted++
			continue
		}
		kept = append(kept, b)
	}
	s.blocks = kept
	return deleted, nil
}

// fakeSlotCache mirrors the Redis cache's versioning contract: Get reports
// the current plan version, Set stores under the caller's version, and
// Invalidate bumps the version so older entries stop matching.
type fakeSlotCache struct {
	entries     map[string][]byte
	versions    map[string]int64
	invalidated int
}

func newFakeSlotCache() *fakeSlotCache {
	return &fakeSlotCache{entries: map[string][]byte{}, versions: map[string]int64{}}
}

func (c *fakeSlotCache) Get(_ context.Context, planID, variant string) ([]byte, int64, bool) {
	ver := c.versions[planID]
	payload, ok := c.entries[fmt.Sprintf("%s|%d|%s", planID, ver, variant)]
	return payload, ver, ok
}

func (c *fakeSlotCache) Set(_ context.Context, planID, variant string, version int64, payload []byte) error {
	c.entries[fmt.Sprintf("%s|%d|%s", planID, version, variant)] = payload
	return nil
}

func (c *fakeSlotCache) Invalidate(_ context.Context, planID string) error {
	c.invalidated++
	c.versions[planID]++
	return nil
}

type fakeGuestStore struct {
	byKey  map[string]guest.Credentials
	nextID int
}

func newFakeGuestStore() *fakeGuestStore {
	return &fakeGuestStore{byKey: map[string]guest.Credentials{}}
}

func (s *fakeGuestStore) GetByName(_ context.Context, planID, name string) (guest.Credentials, error) {
	creds, ok := s.byKey[planID+"/"+name]
	if !ok {
		return guest.Credentials{}, guest.ErrNotFound
	}
	return creds, nil
}

func (s *fakeGuestStore) Create(_ context.Context, planID, name, passwordHash, passwordSalt string) (string, error) {
	key := planID + "/" + name
	if _, ok := s.byKey[key]; ok {
		return "", guest.ErrDuplicateName
	}
	s.nextID++
	id := fmt.Sprintf("guest-%d", s.nextID)
	s.byKey[key] = guest.Credentials{ID: id, PasswordHash: passwordHash, PasswordSalt: passwordSalt}
	return id, nil
}

type testEnv struct {
	mux    *http.ServeMux
	plans  *fakePlanStore
	blocks *fakeBlockStore
	cache  *fakeSlotCache
	guests *fakeGuestStore
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	plans := newFakePlanStore()
	blocks := &fakeBlockStore{}
	slotCache := newFakeSlotCache()
	guests := newFakeGuestStore()
	resolver := guest.NewResolver(guests, testSecret, time.Hour)

	planHandler := NewPlanHandler(plans, logger, testSecret)
	guestHandler := NewGuestHandler(plans, resolver, logger)
	blockHandler := NewTimeBlockHandler(plans, blocks, slotCache, logger, testSecret)
	slotHandler := NewSlotHandler(plans, blocks, slotCache, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/plans", planHandler.Create)
	mux.HandleFunc("GET /api/v1/plans/{id}", planHandler.Get)
	mux.HandleFunc("POST /api/v1/plans/{id}/guest-login", guestHandler.Login)
	mux.HandleFunc("POST /api/v1/plans/{id}/timeblocks", blockHandler.Create)
	mux.HandleFunc("DELETE /api/v1/plans/{id}/timeblocks", blockHandler.Delete)
	mux.HandleFunc("GET /api/v1/plans/{id}/slots", slotHandler.List)

	return &testEnv{mux: mux, plans: plans, blocks: blocks, cache: slotCache, guests: guests}
}

func userToken(t *testing.T, sub string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  sub,
		Kind: auth.KindUser,
		Iat:  now.Unix(),
		Exp:  now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func guestToken(t *testing.T, sub, planID string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:    sub,
		PlanID: planID,
		Kind:   auth.KindGuest,
		Iat:    now.Unix(),
		Exp:    now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedPlan(t *testing.T, dates []string, startHour, endHour int) string {
	t.Helper()
	plan := model.Plan{
		Name:      "offsite",
		Timezone:  "UTC",
		CreatorID: "user-1",
		Dates:     dates,
		StartHour: startHour,
		EndHour:   endHour,
	}
	id, err := e.plans.Create(context.Background(), &plan)
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return id
}

func TestCreatePlan(t *testing.T) {
	env := newTestEnv()
	body := `{"name":"offsite","timezone":"Asia/Ho_Chi_Minh","dates":["2026-09-01","2026-09-02"],"start_hour":9,"end_hour":18}`

	rec := env.do(t, http.MethodPost, "/api/v1/plans", userToken(t, "user-1"), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	plan, ok := env.plans.plans[resp.PlanID]
	if !ok {
		t.Fatalf("plan %q not stored", resp.PlanID)
	}
	if plan.Timezone != "Asia/Ho_Chi_Minh" || plan.CreatorID != "user-1" {
		t.Fatalf("stored plan = %+v", plan)
	}
}

func TestCreatePlanRejectsAnonymousAndGuests(t *testing.T) {
	env := newTestEnv()
	body := `{"name":"offsite","timezone":"UTC","dates":["2026-09-01"]}`

	if rec := env.do(t, http.MethodPost, "/api/v1/plans", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/plans", guestToken(t, "g1", "plan-x"), body); rec.Code != http.StatusForbidden {
		t.Fatalf("guest status = %d, want 403", rec.Code)
	}
}

func TestCreatePlanRejectsUnknownTimezone(t *testing.T) {
	env := newTestEnv()
	body := `{"name":"offsite","timezone":"Mars/Olympus","dates":["2026-09-01"]}`

	rec := env.do(t, http.MethodPost, "/api/v1/plans", userToken(t, "user-1"), body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGetPlanNotFound(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/v1/plans/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGuestLoginCreatesThenAuthenticates(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	body := `{"name":"alice","password":"hunter2"}`

	rec := env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/guest-login", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("first login status = %d: %s", rec.Code, rec.Body.String())
	}
	var first struct {
		GuestID      string `json:"guest_id"`
		SessionToken string `json:"session_token"`
		Created      bool   `json:"created"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !first.Created || first.GuestID == "" || first.SessionToken == "" {
		t.Fatalf("first login = %+v", first)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/guest-login", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("second login status = %d: %s", rec.Code, rec.Body.String())
	}
	var second struct {
		GuestID string `json:"guest_id"`
		Created bool   `json:"created"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.Created || second.GuestID != first.GuestID {
		t.Fatalf("second login = %+v, want existing guest %s", second, first.GuestID)
	}
}

func TestGuestLoginWrongPassword(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)

	env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/guest-login", "", `{"name":"alice","password":"hunter2"}`)
	rec := env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/guest-login", "", `{"name":"alice","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(env.guests.byKey) != 1 {
		t.Fatalf("guest records = %d, want 1", len(env.guests.byKey))
	}
}

func TestGuestLoginRejectsOverlongPassword(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	body := fmt.Sprintf(`{"name":"alice","password":%q}`, strings.Repeat("p", 41))

	rec := env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/guest-login", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if len(env.guests.byKey) != 0 {
		t.Fatalf("guest records = %d, want none", len(env.guests.byKey))
	}

	// The limit itself must still hash cleanly alongside the 32-byte salt.
	body = fmt.Sprintf(`{"name":"alice","password":%q}`, strings.Repeat("p", 40))
	rec = env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/guest-login", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status at limit = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGuestLoginUnknownPlan(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/v1/plans/nope/guest-login", "", `{"name":"alice","password":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreateTimeBlock(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	body := `{"start_at":"2026-09-01T09:00:00Z","end_at":"2026-09-01T12:00:00Z"}`

	rec := env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/timeblocks", userToken(t, "user-1"), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.blocks.blocks) != 1 {
		t.Fatalf("stored blocks = %d, want 1", len(env.blocks.blocks))
	}
	if b := env.blocks.blocks[0]; b.ParticipantID != "user-1" || b.IsGuest {
		t.Fatalf("stored block = %+v", b)
	}
	if env.cache.invalidated != 1 {
		t.Fatalf("cache invalidations = %d, want 1", env.cache.invalidated)
	}
}

func TestCreateTimeBlockRejectsForeignGuest(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	body := `{"start_at":"2026-09-01T09:00:00Z","end_at":"2026-09-01T12:00:00Z"}`

	rec := env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/timeblocks", guestToken(t, "g1", "other-plan"), body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCreateTimeBlockRejectsInvertedRange(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	body := `{"start_at":"2026-09-01T12:00:00Z","end_at":"2026-09-01T09:00:00Z"}`

	rec := env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/timeblocks", userToken(t, "user-1"), body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteTimeBlocksOnlyOwn(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	blockBody := `{"start_at":"2026-09-01T09:00:00Z","end_at":"2026-09-01T12:00:00Z"}`
	env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/timeblocks", userToken(t, "user-1"), blockBody)
	env.do(t, http.MethodPost, "/api/v1/plans/"+planID+"/timeblocks", userToken(t, "user-2"), blockBody)

	rec := env.do(t, http.MethodDelete, "/api/v1/plans/"+planID+"/timeblocks", userToken(t, "user-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deleted != 1 {
		t.Fatalf("deleted = %d, want 1", resp.Deleted)
	}
	if len(env.blocks.blocks) != 1 || env.blocks.blocks[0].ParticipantID != "user-2" {
		t.Fatalf("remaining blocks = %+v", env.blocks.blocks)
	}
}

func seedSlotFixture(t *testing.T, env *testEnv) string {
	t.Helper()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	env.plans.participants[planID] = []model.Participant{
		{ID: "user-x", Kind: model.KindUser},
		{ID: "user-y", Kind: model.KindUser},
	}
	env.blocks.blocks = []model.TimeBlock{
		{PlanID: planID, ParticipantID: "user-x",
			StartAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)},
		{PlanID: planID, ParticipantID: "user-y",
			StartAt: time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)},
	}
	return planID
}

func TestListSlotsIntersection(t *testing.T) {
	env := newTestEnv()
	planID := seedSlotFixture(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != "intersection" {
		t.Fatalf("mode = %q", resp.Mode)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("slots = %+v, want exactly one", resp.Slots)
	}
	s := resp.Slots[0]
	if s.StartTime != "2026-09-01T11:00:00Z" || s.EndTime != "2026-09-01T12:00:00Z" {
		t.Fatalf("slot window = %s..%s", s.StartTime, s.EndTime)
	}
	if s.AvailableCount != 2 || s.TotalParticipants != 2 {
		t.Fatalf("slot counts = %+v", s)
	}
}

func TestListSlotsUnionRanksFullOverlapFirst(t *testing.T) {
	env := newTestEnv()
	planID := seedSlotFixture(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots?mode=union", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 3 {
		t.Fatalf("slots = %+v, want 3", resp.Slots)
	}
	first := resp.Slots[0]
	if first.AvailableCount != 2 || len(first.AvailableParticipantIDs) != 2 {
		t.Fatalf("top slot = %+v, want both participants", first)
	}
}

func TestListSlotsViewerTimezone(t *testing.T) {
	env := newTestEnv()
	planID := seedSlotFixture(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots?tz=Asia/Tokyo", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Timezone != "Asia/Tokyo" {
		t.Fatalf("timezone = %q", resp.Timezone)
	}
	if len(resp.Slots) != 1 || resp.Slots[0].StartTime != "2026-09-01T20:00:00+09:00" {
		t.Fatalf("slots = %+v", resp.Slots)
	}
}

func TestListSlotsRejectsBadModeAndZone(t *testing.T) {
	env := newTestEnv()
	planID := seedSlotFixture(t, env)

	if rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots?mode=bogus", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mode status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots?tz=Mars/Olympus", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad tz status = %d, want 400", rec.Code)
	}
}

func TestListSlotsParticipantFilter(t *testing.T) {
	env := newTestEnv()
	planID := seedSlotFixture(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots?participants=user-x", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("slots = %+v, want 1", resp.Slots)
	}
	s := resp.Slots[0]
	if s.StartTime != "2026-09-01T09:00:00Z" || s.EndTime != "2026-09-01T12:00:00Z" || s.TotalParticipants != 1 {
		t.Fatalf("slot = %+v", s)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots?participants=nobody", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown filter status = %d, want 400", rec.Code)
	}
}

func TestListSlotsServedFromCache(t *testing.T) {
	env := newTestEnv()
	planID := seedSlotFixture(t, env)

	first := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots", "", "")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}

	// Mutating the backing store without invalidation must not change the
	// cached response.
	env.blocks.blocks = nil
	second := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots", "", "")
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached response differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
}

func TestListSlotsWriteDuringComputeNotServedStale(t *testing.T) {
	env := newTestEnv()
	planID := seedSlotFixture(t, env)

	// A block write commits while the first request is still computing: the
	// plan version bumps after the request has observed it. The computed
	// payload must land on the orphaned version, not mask the write.
	env.blocks.onLoad = func() {
		if err := env.cache.Invalidate(context.Background(), planID); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		env.blocks.blocks = append(env.blocks.blocks, model.TimeBlock{
			PlanID: planID, ParticipantID: "user-y",
			StartAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
		})
	}

	first := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots", "", "")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d: %s", first.Code, first.Body.String())
	}

	second := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots", "", "")
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d: %s", second.Code, second.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// With the raced-in block, y is free 09:00-14:00 and the common window
	// widens to 09:00-12:00. Serving the pre-write 11:00-12:00 here would
	// mean the stale payload was cached under the bumped version.
	if len(resp.Slots) != 1 {
		t.Fatalf("slots = %+v, want 1", resp.Slots)
	}
	if resp.Slots[0].StartTime != "2026-09-01T09:00:00Z" || resp.Slots[0].EndTime != "2026-09-01T12:00:00Z" {
		t.Fatalf("slot window = %s..%s, want the post-write 09:00..12:00", resp.Slots[0].StartTime, resp.Slots[0].EndTime)
	}
}

func TestListSlotsNoCommonWindowIsEmptySuccess(t *testing.T) {
	env := newTestEnv()
	planID := env.seedPlan(t, []string{"2026-09-01"}, 9, 17)
	env.plans.participants[planID] = []model.Participant{
		{ID: "user-x", Kind: model.KindUser},
		{ID: "user-y", Kind: model.KindUser},
	}
	env.blocks.blocks = []model.TimeBlock{
		{PlanID: planID, ParticipantID: "user-x",
			StartAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)},
		{PlanID: planID, ParticipantID: "user-y",
			StartAt: time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)},
	}

	rec := env.do(t, http.MethodGet, "/api/v1/plans/"+planID+"/slots", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("slots = %+v, want none", resp.Slots)
	}
}
