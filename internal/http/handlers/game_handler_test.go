package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/crafthub/go-link-backend/internal/domain"
	"github.com/crafthub/go-link-backend/internal/schedule"
	"github.com/crafthub/go-link-backend/internal/services"
)

// ---------- POST /game/verify ----------

func TestSubmitCode_FullStack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newLinkStack(t)
	h := New(svc, stubWarmupSvc{}, newDispatcher(t, svc))
	r := gin.New()
	r.POST("/discord/commands", h.DiscordCommand)
	r.POST("/game/verify", h.SubmitCode)

	// Issue a code through the Discord surface first.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/discord/commands",
		bytes.NewBufferString(`{"command":"link","discord_id":777}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("issue -> %d body=%s", w.Code, w.Body.String())
	}
	var issued IssuedCodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil {
		t.Fatalf("json: %v", err)
	}

	// Redeem with surrounding whitespace; the handler trims.
	body := `{"minecraft_id":"  mc-77  ","code":" ` + issued.Code + ` "}`
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/game/verify", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("redeem -> %d body=%s", w.Code, w.Body.String())
	}
	var link domain.AccountLink
	if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
		t.Fatalf("json: %v", err)
	}
	if link.MinecraftID != "mc-77" || link.DiscordID != 777 {
		t.Fatalf("unexpected link: %#v", link)
	}

	// Codes are single-use: a replay is indistinguishable from a bad code.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/game/verify", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("replay -> %d body=%s", w.Code, w.Body.String())
	}
}

func TestSubmitCode_BadJSON_Invalid_AlreadyLinked_Internal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(links LinkService) *gin.Engine {
		h := New(links, stubWarmupSvc{}, newDispatcher(t, links))
		r := gin.New()
		r.POST("/game/verify", h.SubmitCode)
		return r
	}
	post := func(r *gin.Engine, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/game/verify", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
		return w
	}

	// Bad JSON -> 400
	if w := post(newRouter(stubLinkSvc{}), "{bad"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Unknown code -> 404 invalid_code
	{
		links := stubLinkSvc{
			submit: func(context.Context, string, string) (*domain.AccountLink, error) {
				return nil, services.ErrInvalidCode
			},
		}
		w := post(newRouter(links), `{"minecraft_id":"mc-1","code":"WRONG1"}`)
		if w.Code != http.StatusNotFound {
			t.Fatalf("invalid code -> %d", w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json: %v", err)
		}
		if resp.Code != ErrCodeInvalidCode {
			t.Fatalf("code = %q", resp.Code)
		}
	}

	// Game account already linked -> 409
	{
		links := stubLinkSvc{
			submit: func(context.Context, string, string) (*domain.AccountLink, error) {
				return nil, services.ErrAlreadyLinked
			},
		}
		if w := post(newRouter(links), `{"minecraft_id":"mc-1","code":"ABCDEF"}`); w.Code != http.StatusConflict {
			t.Fatalf("already linked -> %d", w.Code)
		}
	}

	// Internal -> 500
	{
		links := stubLinkSvc{
			submit: func(context.Context, string, string) (*domain.AccountLink, error) {
				return nil, errors.New("db down")
			},
		}
		if w := post(newRouter(links), `{"minecraft_id":"mc-1","code":"ABCDEF"}`); w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
	}
}

// ---------- POST /game/unlink + GET /game/links/:minecraft_id ----------

func TestGameUnlink_and_GetGameLink(t *testing.T) {
	gin.SetMode(gin.TestMode)

	want := &domain.AccountLink{MinecraftID: "mc-1", DiscordID: 42}
	links := stubLinkSvc{
		byMC: func(_ context.Context, mc string) (*domain.AccountLink, error) {
			if mc == "mc-1" {
				return want, nil
			}
			return nil, services.ErrLinkNotFound
		},
		unlinkMC: func(_ context.Context, mc string) error {
			if mc == "mc-1" {
				return nil
			}
			return services.ErrLinkNotFound
		},
	}
	h := New(links, stubWarmupSvc{}, newDispatcher(t, links))
	r := gin.New()
	r.POST("/game/unlink", h.GameUnlink)
	r.GET("/game/links/:minecraft_id", h.GetGameLink)

	// Lookup found -> 200
	{
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/game/links/mc-1", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("found -> %d body=%s", w.Code, w.Body.String())
		}
		var out domain.AccountLink
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.DiscordID != 42 {
			t.Fatalf("unexpected link: %#v", out)
		}
	}

	// Lookup missing -> 404
	{
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/game/links/mc-9", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("missing -> %d", w.Code)
		}
	}

	// Unlink success -> 204 (id trimmed)
	{
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/game/unlink",
			bytes.NewBufferString(`{"minecraft_id":" mc-1 "}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("unlink -> %d body=%s", w.Code, w.Body.String())
		}
	}

	// Unlink missing -> 404
	{
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/game/unlink",
			bytes.NewBufferString(`{"minecraft_id":"mc-9"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("unlink missing -> %d", w.Code)
		}
	}

	// Bad JSON -> 400
	{
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/game/unlink", bytes.NewBufferString("{bad"))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}
}

// ---------- POST /game/warmups ----------

func TestStartWarmup_RealService(t *testing.T) {
	gin.SetMode(gin.TestMode)

	log := zerolog.Nop()
	warm := services.NewWarmupService(schedule.New("warmup", log), log)
	links := stubLinkSvc{}
	h := New(links, warm, newDispatcher(t, links))
	r := gin.New()
	r.POST("/game/warmups", h.StartWarmup)

	body := `{"actor":"steve","command":"spawn","seconds":60}`

	// First request starts the cooldown -> 201
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/game/warmups", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("start -> %d body=%s", w.Code, w.Body.String())
	}

	// Second request while live -> 409 with remaining seconds
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/game/warmups", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("active -> %d body=%s", w.Code, w.Body.String())
	}
	var status WarmupStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("json: %v", err)
	}
	if status.RemainingSeconds <= 0 || status.RemainingSeconds > 60 {
		t.Fatalf("remaining_seconds = %d", status.RemainingSeconds)
	}

	// A different command for the same actor is unaffected.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/game/warmups",
		bytes.NewBufferString(`{"actor":"steve","command":"home","seconds":60}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("other command -> %d body=%s", w.Code, w.Body.String())
	}
}

func TestStartWarmup_Validation_and_Internal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(warm WarmupService) *gin.Engine {
		links := stubLinkSvc{}
		h := New(links, warm, newDispatcher(t, links))
		r := gin.New()
		r.POST("/game/warmups", h.StartWarmup)
		return r
	}
	post := func(r *gin.Engine, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/game/warmups", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
		return w
	}

	// Missing fields and non-positive durations -> 400
	for _, body := range []string{
		"{bad",
		`{"actor":"steve","command":"spawn"}`,
		`{"actor":"steve","command":"spawn","seconds":0}`,
		`{"actor":"steve","command":"spawn","seconds":-5}`,
	} {
		if w := post(newRouter(stubWarmupSvc{}), body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %q -> %d", body, w.Code)
		}
	}

	// Unexpected service error -> 500
	warm := stubWarmupSvc{
		begin: func(string, string, time.Duration) error { return errors.New("boom") },
	}
	if w := post(newRouter(warm), `{"actor":"steve","command":"spawn","seconds":5}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("internal -> %d", w.Code)
	}
}

// ---------- DELETE /game/warmups ----------

func TestCancelWarmup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var cancelled []string
	warm := stubWarmupSvc{
		cancel: func(a, c string) bool {
			cancelled = append(cancelled, a+"/"+c)
			return a == "steve"
		},
	}
	links := stubLinkSvc{}
	h := New(links, warm, newDispatcher(t, links))
	r := gin.New()
	r.DELETE("/game/warmups", h.CancelWarmup)

	do := func(query string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/game/warmups"+query, nil)
		r.ServeHTTP(w, req)
		return w
	}

	// Missing params -> 400
	if w := do("?actor=steve"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing command -> %d", w.Code)
	}
	if w := do("?command=spawn"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing actor -> %d", w.Code)
	}

	// Live cooldown -> 204
	if w := do("?actor=steve&command=spawn"); w.Code != http.StatusNoContent {
		t.Fatalf("cancel -> %d", w.Code)
	}
	if len(cancelled) != 1 || cancelled[0] != "steve/spawn" {
		t.Fatalf("cancelled = %v", cancelled)
	}

	// Nothing live -> 404
	if w := do("?actor=alex&command=spawn"); w.Code != http.StatusNotFound {
		t.Fatalf("no cooldown -> %d", w.Code)
	}
}

func Test_ceilSeconds(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{-time.Second, 0},
		{0, 0},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{60 * time.Second, 60},
	}
	for _, tc := range cases {
		if got := ceilSeconds(tc.d); got != tc.want {
			t.Fatalf("ceilSeconds(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
