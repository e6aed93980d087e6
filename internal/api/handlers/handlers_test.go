package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/api/handlers"
	"github.com/dvloznov/registration-tracker/internal/api/middleware"
	"github.com/dvloznov/registration-tracker/internal/infra/memory"
	"github.com/dvloznov/registration-tracker/internal/program"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

const testAdminKey = "test-admin-key"

type env struct {
	server   *httptest.Server
	programs *memory.ProgramRepo
	meta     *memory.TransactionRepo
}

// stubRecognizer avoids network calls; recognition output is fixed.
type stubRecognizer struct{ text string }

func (s stubRecognizer) Recognize(context.Context, []byte) (string, error) {
	return s.text, nil
}

func newEnv(t *testing.T) *env {
	t.Helper()

	meta := memory.NewTransactionRepo()
	images := memory.NewImageRepo()
	programs := memory.NewProgramRepo()
	store := transaction.NewStore(meta, images, nil, zerolog.Nop())

	rec := stubRecognizer{text: "Paid Rs 5,500\nFrom: Asha\nUPI Ref 123456789012"}

	regs := handlers.NewRegistrationsHandler(store, programs, rec, nil, zerolog.Nop())
	admin := handlers.NewAdminHandler(store, programs, zerolog.Nop())
	progs := handlers.NewProgramsHandler(programs, programs, programs, store, nil, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/device-token", regs.IssueDeviceToken)
	mux.HandleFunc("/api/registrations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			regs.Submit(w, r)
		} else {
			regs.ListMine(w, r)
		}
	})
	mux.HandleFunc("/api/programs", progs.List)

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/api/admin/transactions", admin.ListTransactions)
	adminMux.HandleFunc("/api/admin/transactions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/admin/transactions/")
		switch {
		case strings.HasSuffix(rest, "/status"):
			admin.UpdateStatus(w, r, strings.TrimSuffix(rest, "/status"))
		case strings.HasSuffix(rest, "/image"):
			admin.GetImage(w, r, strings.TrimSuffix(rest, "/image"))
		default:
			admin.DeleteTransaction(w, r, rest)
		}
	})
	adminMux.HandleFunc("/api/admin/programs/reorder", progs.Reorder)
	mux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	handler := middleware.Sessions(testAdminKey)(mux)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &env{server: server, programs: programs, meta: meta}
}

func (e *env) seedProgram(t *testing.T, id string) {
	t.Helper()
	err := e.programs.Put(context.Background(), &program.Reference{
		ID: id, ProgramName: "Winter Retreat", ProgramDate: "2026-12-20",
		ProgramCity: "Pune", ProgramFee: 5000, RoomFee: 500, DormFee: 100,
	})
	if err != nil {
		t.Fatalf("seed program: %v", err)
	}
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func submitBody() map[string]any {
	return map[string]any{
		"programId":   "p1",
		"imageBase64": "aW1hZ2UtYnl0ZXM=",
		"draft": map[string]any{
			"place":        "Mumbai",
			"primaryIndex": 0,
			"participants": []map[string]any{{
				"name": "Asha", "gender": "Female", "age": 30,
				"mobile": "9876543210", "accommodation": "Room",
			}},
		},
	}
}

func TestSubmitAndReviewFlow(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1")

	// Issue a device token.
	resp, body := e.do(t, http.MethodPost, "/api/device-token", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("device-token status = %d", resp.StatusCode)
	}
	token, _ := body["device_token"].(string)
	if token == "" {
		t.Fatal("no device token issued")
	}

	// Submit a registration under that token.
	resp, body = e.do(t, http.MethodPost, "/api/registrations", submitBody(),
		map[string]string{"X-Device-Token": token})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("no transaction id returned")
	}
	// Program fee 5000 + room fee 500.
	if amount, _ := body["amount"].(float64); amount != 5500 {
		t.Errorf("amount = %v, want 5500", amount)
	}
	if match, _ := body["amountMatch"].(bool); !match {
		t.Errorf("amountMatch = false, want true (recognized Rs 5,500)")
	}

	// The participant sees their own registration.
	resp, body = e.do(t, http.MethodGet, "/api/registrations", nil,
		map[string]string{"X-Device-Token": token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list mine status = %d", resp.StatusCode)
	}
	if count, _ := body["count"].(float64); count != 1 {
		t.Errorf("own registrations count = %v, want 1", count)
	}

	// A participant cannot reach the review console.
	resp, _ = e.do(t, http.MethodGet, "/api/admin/transactions", nil,
		map[string]string{"X-Device-Token": token})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin list without key status = %d, want 403", resp.StatusCode)
	}

	// The admin sees it in the PENDING bucket.
	adminHdr := map[string]string{"X-Admin-Key": testAdminKey}
	resp, body = e.do(t, http.MethodGet, "/api/admin/transactions", nil, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list status = %d", resp.StatusCode)
	}
	buckets, _ := body["buckets"].(map[string]any)
	if pending, _ := buckets["PENDING"].(float64); pending != 1 {
		t.Errorf("pending bucket = %v, want 1", pending)
	}

	// Adjudicate it through the state machine.
	resp, _ = e.do(t, http.MethodPut, "/api/admin/transactions/"+id+"/status",
		map[string]string{"status": "REGISTERED"}, adminHdr)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition status = %d", resp.StatusCode)
	}

	// An illegal jump is rejected with a conflict.
	resp, _ = e.do(t, http.MethodPut, "/api/admin/transactions/"+id+"/status",
		map[string]string{"status": "REJECTED"}, adminHdr)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("illegal transition status = %d, want 409", resp.StatusCode)
	}
}

func TestSubmitValidationFailure(t *testing.T) {
	e := newEnv(t)
	e.seedProgram(t, "p1")

	body := submitBody()
	body["draft"].(map[string]any)["place"] = ""

	resp, decoded := e.do(t, http.MethodPost, "/api/registrations", body,
		map[string]string{"X-Device-Token": "dev_x"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if field, _ := decoded["field"].(string); field != "place" {
		t.Errorf("failed field = %q, want place", field)
	}
}

func TestProgramReorderIsAtomicSwap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		if err := e.programs.Put(ctx, &program.Reference{ID: id, ProgramName: "P" + id, DisplayOrder: i}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp, _ := e.do(t, http.MethodPost, "/api/admin/programs/reorder",
		map[string]string{"idA": "a", "idB": "c"},
		map[string]string{"X-Admin-Key": testAdminKey})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reorder status = %d", resp.StatusCode)
	}

	refs, err := e.programs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if refs[0].ID != "c" || refs[2].ID != "a" {
		t.Errorf("order after swap = %s,%s,%s; want c,b,a", refs[0].ID, refs[1].ID, refs[2].ID)
	}
}
