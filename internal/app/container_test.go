package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/config"
	"github.com/kapu/greeting-push-go/internal/domain"
)

type upstream struct {
	server         *httptest.Server
	tokenCalls     atomic.Int32
	templateCalls  atomic.Int32
	pushplusCalls  atomic.Int32
	tokenAvailable bool
}

func newUpstream(t *testing.T, tokenAvailable bool) *upstream {
	t.Helper()
	u := &upstream{tokenAvailable: tokenAvailable}
	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("city") != "北京" {
			_, _ = w.Write([]byte(`{"code":1,"msg":"unknown city"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"list":[{"city":"北京","province":"北京","weather":"晴","temp":20,"low":12,"high":25,"humidity":"40%","wind":"北风3级","pm25":30,"airQuality":"优"}]}}`))
	})
	mux.HandleFunc("/area", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"cities":[{"cityName":"朝阳","currentConfirmedCount":1,"suspectedCount":0}]}]}`))
	})
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		u.tokenCalls.Add(1)
		if !u.tokenAvailable {
			_, _ = w.Write([]byte(`{"errcode":40001,"errmsg":"invalid credential"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":7200}`))
	})
	mux.HandleFunc("/cgi-bin/message/template/send", func(w http.ResponseWriter, r *http.Request) {
		u.templateCalls.Add(1)
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		u.pushplusCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "pp-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"msg":"ok"}`))
	})
	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func testConfig(u *upstream) *config.Config {
	return &config.Config{
		Logging: config.LoggingConfig{Level: "info"},
		HTTP:    config.HTTPConfig{Timeout: 2 * time.Second},
		Endpoints: config.EndpointsConfig{
			Weather:  u.server.URL + "/weather",
			Epidemic: u.server.URL + "/area",
			WeChat:   u.server.URL,
			PushPlus: u.server.URL,
		},
		WeChat:   config.WeChatConfig{AppID: "app", AppSecret: "secret", TemplateID: "tpl"},
		PushPlus: config.PushPlusConfig{Token: "pp-token"},
		Run: config.RunConfig{
			RecipientSource: config.RecipientSourceFile,
			TimeZone:        "Asia/Shanghai",
			Timeout:         time.Minute,
		},
		Recipients: []domain.Recipient{
			{Name: "小红", City: "北京", WeChatOpenID: "o1"},
			{Name: "小明", City: "上海", WeChatOpenID: "o2"},
		},
	}
}

func TestBuildAndRunDeliversOnEveryChannel(t *testing.T) {
	u := newUpstream(t, true)
	container, err := Build(context.Background(), testConfig(u), zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer container.Close()

	report := container.Run(context.Background())

	if report.AllFailed() {
		t.Fatalf("expected deliveries to succeed")
	}
	if got := report.Count(domain.DeliveryDelivered); got != 4 {
		t.Fatalf("expected 4 delivered results, got %d", got)
	}
	if u.tokenCalls.Load() != 1 {
		t.Fatalf("expected the token to be fetched once per run, got %d", u.tokenCalls.Load())
	}
	if u.templateCalls.Load() != 2 || u.pushplusCalls.Load() != 2 {
		t.Fatalf("unexpected send counts: template=%d pushplus=%d", u.templateCalls.Load(), u.pushplusCalls.Load())
	}
}

func TestRunWithoutTokenStillUsesRelay(t *testing.T) {
	u := newUpstream(t, false)
	container, err := Build(context.Background(), testConfig(u), zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer container.Close()

	report := container.Run(context.Background())

	for _, rec := range report.Recipients {
		if rec.Results[0].Status != domain.DeliverySkipped {
			t.Fatalf("expected template channel skipped for %s, got %+v", rec.Recipient, rec.Results[0])
		}
		if rec.Results[1].Status != domain.DeliveryDelivered {
			t.Fatalf("expected relay delivered for %s, got %+v", rec.Recipient, rec.Results[1])
		}
	}
	if u.templateCalls.Load() != 0 {
		t.Fatalf("no template message should be sent without a token")
	}
}

func TestRunWithOnlyTemplateChannelAndNoTokenFails(t *testing.T) {
	u := newUpstream(t, false)
	cfg := testConfig(u)
	cfg.PushPlus = config.PushPlusConfig{}
	container, err := Build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer container.Close()

	report := container.Run(context.Background())

	if report.Count(domain.DeliveryDelivered) != 0 {
		t.Fatalf("nothing should be delivered without a token")
	}
	if !report.AllFailed() {
		t.Fatalf("expected the run to be reported as all failed")
	}
}

func TestBuildWithLedgerPreventsDuplicateRun(t *testing.T) {
	u := newUpstream(t, true)
	mr := miniredis.RunT(t)

	cfg := testConfig(u)
	cfg.WeChat = config.WeChatConfig{}
	cfg.Ledger.Enabled = true
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	cfg.Redis = config.RedisConfig{Host: mr.Host(), Port: port}

	for i := 0; i < 2; i++ {
		container, err := Build(context.Background(), cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		container.Run(context.Background())
		container.Close()
	}

	if u.pushplusCalls.Load() != 2 {
		t.Fatalf("expected each recipient to be greeted once across two runs, got %d sends", u.pushplusCalls.Load())
	}
}

func TestBuildLedgerUnavailableContinues(t *testing.T) {
	u := newUpstream(t, true)
	cfg := testConfig(u)
	cfg.Ledger.Enabled = true
	cfg.Redis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

	container, err := Build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build should tolerate an unreachable ledger, got %v", err)
	}
	defer container.Close()
}

func TestBuildRejectsNilConfig(t *testing.T) {
	if _, err := Build(context.Background(), nil, zap.NewNop()); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
