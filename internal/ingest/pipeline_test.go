package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/primisapp/primis-backend/internal/broadcast"
	"github.com/primisapp/primis-backend/internal/device"
	"github.com/primisapp/primis-backend/internal/infrastructure/logging"
)

// fakeRepo is an in-memory device.Repository recording pipeline activity.
type fakeRepo struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	data    []device.DataRecord
	nextID  int64

	failAppendData bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{devices: make(map[string]*device.Device)}
}

func (r *fakeRepo) List(context.Context) ([]device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []device.Device{}
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeRepo) GetByIMEI(_ context.Context, imei string) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[imei]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *fakeRepo) Create(_ context.Context, imei string, status device.Status) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[imei]; ok {
		return nil, device.ErrDeviceExists
	}
	r.nextID++
	d := &device.Device{ID: r.nextID, IMEI: imei, Status: status}
	r.devices[imei] = d
	copied := *d
	return &copied, nil
}

func (r *fakeRepo) CreateIfAbsent(ctx context.Context, imei string, status device.Status) (*device.Device, error) {
	if d, err := r.GetByIMEI(ctx, imei); err == nil {
		return d, nil
	}
	return r.Create(ctx, imei, status)
}

func (r *fakeRepo) UpdateStatus(_ context.Context, imei string, status device.Status) (*device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[imei]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	d.Status = status
	copied := *d
	return &copied, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for imei, d := range r.devices {
		if d.ID == id {
			delete(r.devices, imei)
			return nil
		}
	}
	return device.ErrDeviceNotFound
}

func (r *fakeRepo) AppendData(_ context.Context, imei, topic string, payload device.Payload) (*device.DataRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppendData {
		return nil, errors.New("append failed")
	}
	d, ok := r.devices[imei]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	rec := device.DataRecord{ID: int64(len(r.data) + 1), DeviceID: d.ID, Topic: topic, Payload: payload}
	r.data = append(r.data, rec)
	return &rec, nil
}

func (r *fakeRepo) DataByIMEI(_ context.Context, imei string, _ int) ([]device.DataRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []device.DataRecord{}
	d, ok := r.devices[imei]
	if !ok {
		return out, nil
	}
	for _, rec := range r.data {
		if rec.DeviceID == d.ID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) records() []device.DataRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]device.DataRecord{}, r.data...)
}

func (r *fakeRepo) status(imei string) device.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[imei]; ok {
		return d.Status
	}
	return ""
}

// fakeHub records broadcast messages.
type fakeHub struct {
	mu   sync.Mutex
	msgs []broadcast.Message
}

func (h *fakeHub) Broadcast(msg broadcast.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *fakeHub) messages() []broadcast.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]broadcast.Message{}, h.msgs...)
}

// fakeSink records telemetry metric writes.
type fakeSink struct {
	mu     sync.Mutex
	points map[string]float64
}

func newFakeSink() *fakeSink { return &fakeSink{points: make(map[string]float64)} }

func (s *fakeSink) WriteTelemetryMetric(imei, field string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[imei+"/"+field] = value
}

func (s *fakeSink) value(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.points[key]
	return v, ok
}

func testPipeline(repo *fakeRepo, hub *fakeHub, opts Options) *Pipeline {
	return New(nil, repo, hub, logging.Default(), opts)
}

func TestHandleMessageAutoProvisions(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{})

	err := p.HandleMessage("devices/860000000000001/data", []byte(`{"temp": 21.5}`))
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if repo.status("860000000000001") != device.StatusOnline {
		t.Errorf("device status = %q, want online", repo.status("860000000000001"))
	}

	records := repo.records()
	if len(records) != 1 {
		t.Fatalf("stored %d records, want 1", len(records))
	}
	if records[0].Topic != "devices/860000000000001/data" {
		t.Errorf("record topic = %q", records[0].Topic)
	}
	if got := records[0].Payload["temp"]; got != 21.5 {
		t.Errorf("record payload temp = %v, want 21.5", got)
	}

	// Plain data topics broadcast nothing by default.
	if got := len(hub.messages()); got != 0 {
		t.Errorf("broadcast %d messages, want 0", got)
	}
}

func TestHandleMessageExistingDeviceMarkedOnline(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{})

	if _, err := repo.Create(context.Background(), "860000000000001", device.StatusOffline); err != nil {
		t.Fatalf("seeding device: %v", err)
	}

	if err := p.HandleMessage("devices/860000000000001/data", []byte(`{}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if repo.status("860000000000001") != device.StatusOnline {
		t.Errorf("device status = %q, want online", repo.status("860000000000001"))
	}

	devices, _ := repo.List(context.Background())
	if len(devices) != 1 {
		t.Errorf("have %d devices, want 1 (no duplicate provisioning)", len(devices))
	}
}

func TestHandleMessageNonJSONPayload(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{})

	if err := p.HandleMessage("devices/860000000000001/data", []byte("hello world")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	records := repo.records()
	if len(records) != 1 {
		t.Fatalf("stored %d records, want 1", len(records))
	}
	if got := records[0].Payload["message"]; got != "hello world" {
		t.Errorf("payload message = %v, want raw text", got)
	}
}

func TestHandleMessageBadTopic(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{})

	tests := []string{
		"devices",
		"devices/",
		"no-slashes",
	}
	for _, topic := range tests {
		t.Run(topic, func(t *testing.T) {
			if err := p.HandleMessage(topic, []byte(`{}`)); err == nil {
				t.Error("HandleMessage() error = nil, want imei error")
			}
		})
	}

	if got := len(repo.records()); got != 0 {
		t.Errorf("stored %d records, want 0", got)
	}
	devices, _ := repo.List(context.Background())
	if len(devices) != 0 {
		t.Errorf("provisioned %d devices, want 0", len(devices))
	}
}

func TestHandleStatusMessage(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantStatus    device.Status
		wantBroadcast bool
	}{
		{"reported offline", `{"status": "offline"}`, device.StatusOffline, true},
		{"reported online", `{"status": "online"}`, device.StatusOnline, true},
		{"unknown status value", `{"status": "sleeping"}`, device.StatusOnline, false},
		{"uppercase rejected", `{"status": "OFFLINE"}`, device.StatusOnline, false},
		{"missing status field", `{"battery": 80}`, device.StatusOnline, false},
		{"non-string status", `{"status": 1}`, device.StatusOnline, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			hub := &fakeHub{}
			p := testPipeline(repo, hub, Options{})

			err := p.HandleMessage("devices/860000000000001/status", []byte(tt.payload))
			if err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}

			if got := repo.status("860000000000001"); got != tt.wantStatus {
				t.Errorf("device status = %q, want %q", got, tt.wantStatus)
			}

			msgs := hub.messages()
			if tt.wantBroadcast {
				if len(msgs) != 1 {
					t.Fatalf("broadcast %d messages, want 1", len(msgs))
				}
				if msgs[0].Type != broadcast.TypeDeviceStatus {
					t.Errorf("broadcast type = %q, want %q", msgs[0].Type, broadcast.TypeDeviceStatus)
				}
				if msgs[0].Data.Status != string(tt.wantStatus) {
					t.Errorf("broadcast status = %q, want %q", msgs[0].Data.Status, tt.wantStatus)
				}
			} else if len(msgs) != 0 {
				t.Errorf("broadcast %d messages, want 0", len(msgs))
			}

			// The message itself is always stored, valid status or not.
			if got := len(repo.records()); got != 1 {
				t.Errorf("stored %d records, want 1", got)
			}
		})
	}
}

func TestHandleTelemetryMessage(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	sink := newFakeSink()
	p := testPipeline(repo, hub, Options{Sink: sink})

	payload := `{"temp": 21.5, "active": true, "label": "greenhouse", "count": 3}`
	if err := p.HandleMessage("devices/860000000000001/telemetry", []byte(payload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	msgs := hub.messages()
	if len(msgs) != 1 {
		t.Fatalf("broadcast %d messages, want 1", len(msgs))
	}
	if msgs[0].Type != broadcast.TypeTelemetry {
		t.Errorf("broadcast type = %q, want %q", msgs[0].Type, broadcast.TypeTelemetry)
	}
	if msgs[0].Data.IMEI != "860000000000001" {
		t.Errorf("broadcast imei = %q", msgs[0].Data.IMEI)
	}

	// Numbers and booleans reach the sink; strings do not.
	if v, ok := sink.value("860000000000001/temp"); !ok || v != 21.5 {
		t.Errorf("sink temp = %v (ok=%v), want 21.5", v, ok)
	}
	if v, ok := sink.value("860000000000001/active"); !ok || v != 1.0 {
		t.Errorf("sink active = %v (ok=%v), want 1", v, ok)
	}
	if v, ok := sink.value("860000000000001/count"); !ok || v != 3.0 {
		t.Errorf("sink count = %v (ok=%v), want 3", v, ok)
	}
	if _, ok := sink.value("860000000000001/label"); ok {
		t.Error("sink recorded a string field")
	}
}

func TestHandleTelemetryWithoutSink(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{})

	// Nil sink must not panic.
	if err := p.HandleMessage("devices/860000000000001/telemetry", []byte(`{"temp": 1}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
}

func TestBroadcastRawOption(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{BroadcastRaw: true})

	if err := p.HandleMessage("devices/860000000000001/data", []byte(`{"k": "v"}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	msgs := hub.messages()
	if len(msgs) != 1 {
		t.Fatalf("broadcast %d messages, want 1", len(msgs))
	}
	if msgs[0].Type != broadcast.TypeMQTTData {
		t.Errorf("broadcast type = %q, want %q", msgs[0].Type, broadcast.TypeMQTTData)
	}
	if msgs[0].Data.Topic != "devices/860000000000001/data" {
		t.Errorf("broadcast topic = %q", msgs[0].Data.Topic)
	}
}

func TestStorageFailuresDoNotAbortPipeline(t *testing.T) {
	repo := newFakeRepo()
	repo.failAppendData = true
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{})

	// Append fails, but the status branch still runs and broadcasts.
	err := p.HandleMessage("devices/860000000000001/status", []byte(`{"status": "offline"}`))
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if got := repo.status("860000000000001"); got != device.StatusOffline {
		t.Errorf("device status = %q, want offline", got)
	}
	if got := len(hub.messages()); got != 1 {
		t.Errorf("broadcast %d messages, want 1", got)
	}
}

func TestSequentialMessagesOverwriteStatus(t *testing.T) {
	repo := newFakeRepo()
	hub := &fakeHub{}
	p := testPipeline(repo, hub, Options{})

	imei := "860000000000001"
	steps := []struct {
		topic   string
		payload string
		want    device.Status
	}{
		{fmt.Sprintf("devices/%s/status", imei), `{"status": "offline"}`, device.StatusOffline},
		{fmt.Sprintf("devices/%s/data", imei), `{"temp": 1}`, device.StatusOnline},
		{fmt.Sprintf("devices/%s/status", imei), `{"status": "offline"}`, device.StatusOffline},
	}

	for i, step := range steps {
		if err := p.HandleMessage(step.topic, []byte(step.payload)); err != nil {
			t.Fatalf("step %d: HandleMessage() error = %v", i, err)
		}
		if got := repo.status(imei); got != step.want {
			t.Errorf("step %d: status = %q, want %q", i, got, step.want)
		}
	}
}
