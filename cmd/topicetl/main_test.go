package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"topicetl/internal/broker"
	"topicetl/internal/extract"
	"topicetl/internal/storage/sqlite"
)

const (
	ordersCfg = `{"brokers":["k1:9092"],"idle_timeout":"1s","poll_interval":"100ms"}`
	ordersMap = `{"columns":[{"name":"id","path":"user.id","required":true},{"name":"name","path":"user.name","default":"unknown"}]}`
)

// scriptSource replays events, then reports timeouts of the requested
// length without sleeping.
type scriptSource struct {
	events []extract.Event
	closed bool
}

func (s *scriptSource) Poll(_ context.Context, timeout time.Duration) (extract.Event, error) {
	if len(s.events) == 0 {
		return extract.Event{Kind: extract.EventPollTimeout, Waited: timeout}, nil
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *scriptSource) Close() error { s.closed = true; return nil }

func msgs(payloads ...string) []extract.Event {
	var out []extract.Event
	for i, p := range payloads {
		out = append(out, extract.Event{Kind: extract.EventMessage,
			Message: &extract.Message{Topic: "orders", Offset: int64(i), Value: []byte(p)}})
	}
	return append(out, extract.Event{Kind: extract.EventEndOfPartitions})
}

type recordingPublisher struct {
	values []string
	failAt int
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, _, value []byte) error {
	if len(p.values)+1 == p.failAt {
		return errors.New("not enough replicas")
	}
	p.values = append(p.values, string(value))
	return nil
}

func (p *recordingPublisher) Close() error { p.closed = true; return nil }

// withHooks swaps the broker and clock hooks for the duration of a test.
func withHooks(t *testing.T, src extract.PollSource, pub publisher) *broker.Config {
	t.Helper()
	origNow, origSrc, origPub := now, newPollSource, newPublisher
	t.Cleanup(func() { now, newPollSource, newPublisher = origNow, origSrc, origPub })

	var seen broker.Config
	now = func() time.Time { return time.Date(2024, 3, 7, 21, 4, 9, 0, time.Local) }
	newPollSource = func(_ context.Context, cfg broker.Config) (extract.PollSource, error) {
		seen = cfg
		return src, nil
	}
	newPublisher = func(cfg broker.Config) (publisher, error) {
		seen = cfg
		return pub, nil
	}
	return &seen
}

func configDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-metrics-backend", "none"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	cases := [][]string{
		{},
		{"frobnicate"},
		{"produce", "orders"},
		{"extract"},
		{"validate"},
		{"list", "extra"},
		{"-no-such-flag", "list"},
	}
	for _, args := range cases {
		if code, _, _ := runCLI(t, args...); code != exitUsage {
			t.Errorf("run(%q) = %d; want %d", args, code, exitUsage)
		}
	}
}

/*
TestExtract_WritesTaggedFile runs a full extraction against a scripted
source and checks the timestamped output file.
*/
func TestExtract_WritesTaggedFile(t *testing.T) {
	dir := configDir(t, map[string]string{"orders.cfg": ordersCfg, "orders.map": ordersMap})
	out := t.TempDir()
	src := &scriptSource{events: msgs(`{"user":{"id":1,"name":"ann"}}`, `{"user":{"id":2}}`)}
	seen := withHooks(t, src, nil)

	code, stdout, stderr := runCLI(t, "-config-dir", dir, "-destination", out, "extract", "orders")
	if code != exitOK {
		t.Fatalf("exit = %d; stderr:\n%s", code, stderr)
	}
	got, err := os.ReadFile(filepath.Join(out, "orders_20240307_210409.csv"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "id,name\n1,ann\n2,unknown\n" {
		t.Fatalf("output = %q", got)
	}
	if !strings.Contains(stdout, "orders: 2 rows") || !strings.Contains(stdout, "end-of-partitions") {
		t.Fatalf("stdout = %q", stdout)
	}
	if !src.closed {
		t.Fatalf("source not closed")
	}
	if seen.Topic != "orders" || seen.Offset != broker.OffsetEarliest || len(seen.Brokers) != 1 {
		t.Fatalf("broker config = %+v", *seen)
	}
}

func TestExtract_TopicsFile(t *testing.T) {
	dir := configDir(t, map[string]string{"orders.cfg": ordersCfg, "orders.map": ordersMap})
	list := filepath.Join(t.TempDir(), "topics.txt")
	if err := os.WriteFile(list, []byte("# nightly\norders\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	withHooks(t, &scriptSource{events: msgs()}, nil)

	code, _, stderr := runCLI(t, "-config-dir", dir, "-destination", out, "extract", "-topics-file", list)
	if code != exitOK {
		t.Fatalf("exit = %d; stderr:\n%s", code, stderr)
	}
	got, _ := os.ReadFile(filepath.Join(out, "orders_20240307_210409.csv"))
	if string(got) != "id,name\n" {
		t.Fatalf("output = %q; want header only", got)
	}
}

func TestExtract_MissingConfigFails(t *testing.T) {
	withHooks(t, &scriptSource{}, nil)
	code, _, stderr := runCLI(t, "-config-dir", t.TempDir(), "extract", "orders")
	if code != exitFailure || !strings.Contains(stderr, "orders.cfg") {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
}

func TestExtract_MissingRequiredFails(t *testing.T) {
	dir := configDir(t, map[string]string{"orders.cfg": ordersCfg, "orders.map": ordersMap})
	withHooks(t, &scriptSource{events: msgs(`{"user":{"name":"x"}}`)}, nil)

	code, _, stderr := runCLI(t, "-config-dir", dir, "-destination", t.TempDir(), "extract", "orders")
	if code != exitFailure || !strings.Contains(stderr, `required column "id"`) {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
}

func TestExtract_SQLiteSink(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "orders.db")
	cfg := `{"brokers":["k1:9092"],"sink":{"kind":"sqlite","dsn":` + jsonString(dbPath) + `,"table":"orders","batch_size":1,"auto_create_table":true}}`
	dir := configDir(t, map[string]string{"orders.cfg": cfg, "orders.map": ordersMap})
	withHooks(t, &scriptSource{events: msgs(`{"user":{"id":1}}`, `{"user":{"id":2,"name":"bo"}}`)}, nil)

	code, stdout, stderr := runCLI(t, "-config-dir", dir, "extract", "orders")
	if code != exitOK {
		t.Fatalf("exit = %d; stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "sqlite:orders") {
		t.Fatalf("stdout = %q", stdout)
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders WHERE name IN ('unknown', 'bo')`).Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d; want 2", n)
	}
}

func TestProduce_PublishesFile(t *testing.T) {
	dir := configDir(t, map[string]string{"orders.cfg": ordersCfg, "orders.map": ordersMap})
	csvPath := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(csvPath, []byte("\ufeffid,name,extra\n1,ann,x\n2,,y\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pub := &recordingPublisher{}
	withHooks(t, nil, pub)

	code, stdout, stderr := runCLI(t, "-config-dir", dir, "produce", "orders", csvPath)
	if code != exitOK {
		t.Fatalf("exit = %d; stderr:\n%s", code, stderr)
	}
	want := []string{`{"user":{"id":1,"name":"ann"}}`, `{"user":{"id":2,"name":""}}`}
	if strings.Join(pub.values, "|") != strings.Join(want, "|") {
		t.Fatalf("published = %q; want %q", pub.values, want)
	}
	if !pub.closed || !strings.Contains(stdout, "2 messages published") {
		t.Fatalf("closed=%v stdout=%q", pub.closed, stdout)
	}
}

func TestProduce_PublishFailureExits1(t *testing.T) {
	dir := configDir(t, map[string]string{"orders.cfg": ordersCfg, "orders.map": ordersMap})
	csvPath := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(csvPath, []byte("id,name\n1,a\n2,b\n3,c\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pub := &recordingPublisher{failAt: 2}
	withHooks(t, nil, pub)

	code, _, stderr := runCLI(t, "-config-dir", dir, "produce", "orders", csvPath)
	if code != exitFailure || !strings.Contains(stderr, "row 2") {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
	if len(pub.values) != 1 || !pub.closed {
		t.Fatalf("published %d, closed %v", len(pub.values), pub.closed)
	}
}

func TestProduce_MissingFile(t *testing.T) {
	dir := configDir(t, map[string]string{"orders.cfg": ordersCfg, "orders.map": ordersMap})
	withHooks(t, nil, &recordingPublisher{})
	code, _, _ := runCLI(t, "-config-dir", dir, "produce", "orders", filepath.Join(dir, "nope.csv"))
	if code != exitFailure {
		t.Fatalf("exit = %d; want %d", code, exitFailure)
	}
}

func TestValidate(t *testing.T) {
	dir := configDir(t, map[string]string{
		"orders.cfg": ordersCfg,
		"orders.map": ordersMap,
		"bad.cfg":    `{"brokers":[],"offset":"middle"}`,
		"bad.map":    ordersMap,
	})
	code, stdout, _ := runCLI(t, "-config-dir", dir, "validate", "orders")
	if code != exitOK || !strings.Contains(stdout, "orders: configuration is valid (2 columns)") {
		t.Fatalf("exit = %d, stdout = %q", code, stdout)
	}
	code, _, stderr := runCLI(t, "-config-dir", dir, "validate", "orders", "bad")
	if code != exitFailure || !strings.Contains(stderr, "bad: error: offset") || !strings.Contains(stderr, "bad: error: brokers") {
		t.Fatalf("exit = %d, stderr = %q", code, stderr)
	}
}

func TestList(t *testing.T) {
	dir := configDir(t, map[string]string{
		"orders.cfg":  ordersCfg,
		"orders.map":  ordersMap,
		"refunds.yml": "brokers: []\n",
	})
	code, stdout, _ := runCLI(t, "-config-dir", dir, "list")
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "TOPIC") ||
		!strings.HasPrefix(lines[1], "orders ") || !strings.HasSuffix(lines[2], "-") {
		t.Fatalf("stdout =\n%s", stdout)
	}
}

func TestConfig(t *testing.T) {
	dir := configDir(t, map[string]string{"orders.cfg": ordersCfg, "orders.map": ordersMap})

	code, stdout, _ := runCLI(t, "-config-dir", dir, "config")
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	var s Settings
	if err := json.Unmarshal([]byte(stdout), &s); err != nil || s.ConfigDir != dir {
		t.Fatalf("settings = %+v, %v", s, err)
	}

	code, stdout, _ = runCLI(t, "-config-dir", dir, "config", "orders")
	if code != exitOK || !strings.Contains(stdout, `"idle_timeout": "1s"`) || !strings.Contains(stdout, `"path": "user.id"`) {
		t.Fatalf("exit = %d, stdout =\n%s", code, stdout)
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
