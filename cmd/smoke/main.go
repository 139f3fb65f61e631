package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type raterResp struct {
	RaterID string `json:"rater_id"`
	Token   string `json:"token"`
}

type form struct {
	Stage            string   `json:"stage"`
	SourceText       string   `json:"source_text"`
	PredictedSummary string   `json:"predicted_summary"`
	ReferenceSummary string   `json:"reference_summary"`
	Similarity       *float64 `json:"similarity_score,omitempty"`
	EditRate         *float64 `json:"edit_rate_score,omitempty"`
	Meteor           *float64 `json:"meteor_score,omitempty"`
	HumanScore       *float64 `json:"human_score"`
	RecordID         string   `json:"record_id,omitempty"`
	Redirect         string   `json:"redirect,omitempty"`
}

type recordResp struct {
	ID               string   `json:"id"`
	PredictedSummary string   `json:"predicted_summary"`
	HumanScore       *float64 `json:"human_score"`
	MyScore          *float64 `json:"my_score"`
}

type enqueuedResp struct {
	TaskID string `json:"task_id"`
	Key    string `json:"key"`
}

const sourceText = `The city council approved a plan on Tuesday to convert two downtown parking
garages into affordable housing, citing a shortage of more than four thousand units. Construction
is expected to begin next spring and finish within three years.`

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "admin API token used to register raters")
	export := flag.Bool("export", false, "Enqueue a dataset export and poll for it")
	waitExport := flag.Duration("wait-export", 15*time.Second, "How long to poll for the export object")
	keep := flag.Bool("keep", false, "Keep the record instead of deleting it at the end")
	flag.Parse()

	httpc := &http.Client{Timeout: 60 * time.Second}
	c := &client{http: httpc, base: *baseFlag}

	// 1) Register two raters
	var alice, bob raterResp
	must(c.do(http.MethodPost, "/raters", *tokenFlag, map[string]string{"name": "smoke-alice"}, &alice), "register alice")
	must(c.do(http.MethodPost, "/raters", *tokenFlag, map[string]string{"name": "smoke-bob"}, &bob), "register bob")
	fmt.Printf("✅ Registered raters %s and %s\n", alice.RaterID, bob.RaterID)

	// 2) Walk the submission stages
	f := form{Stage: "empty", SourceText: sourceText}
	must(c.do(http.MethodPost, "/submissions", alice.Token, f, &f), "generate summary")
	fmt.Printf("✅ Summary (%s): %q\n", f.Stage, f.PredictedSummary)

	f.ReferenceSummary = "Two downtown garages will become affordable housing."
	must(c.do(http.MethodPost, "/submissions", alice.Token, f, &f), "compute metrics")
	fmt.Printf("✅ Metrics (%s): similarity=%s ter=%s meteor=%s\n", f.Stage, fmtF(f.Similarity), fmtF(f.EditRate), fmtF(f.Meteor))

	f.HumanScore = ptr(3)
	must(c.do(http.MethodPost, "/submissions", alice.Token, f, &f), "save")
	fmt.Printf("✅ Saved record %s, redirect %s\n", f.RecordID, f.Redirect)
	id := f.RecordID

	// 3) Second rater scores the record
	var rating map[string]any
	must(c.do(http.MethodPut, "/records/"+id+"/rating", bob.Token, map[string]float64{"score": 4}, &rating), "rate")
	var rec recordResp
	must(c.do(http.MethodGet, "/records/"+id, bob.Token, nil, &rec), "get record")
	fmt.Printf("✅ Aggregate after two ratings: %s (bob's own: %s)\n", fmtF(rec.HumanScore), fmtF(rec.MyScore))

	// 4) Update without a score leaves ratings alone
	upd := map[string]any{"source_text": sourceText, "reference_summary": "Garages downtown become housing.", "human_score": nil}
	must(c.do(http.MethodPut, "/records/"+id, alice.Token, upd, &rec), "update")
	fmt.Printf("✅ Updated record, aggregate still %s\n", fmtF(rec.HumanScore))

	var list struct {
		Records []recordResp `json:"records"`
	}
	must(c.do(http.MethodGet, "/records", alice.Token, nil, &list), "list")
	fmt.Printf("✅ Listed %d records\n", len(list.Records))

	// 5) Optional export
	if *export {
		var enq enqueuedResp
		must(c.do(http.MethodPost, "/exports", alice.Token, nil, &enq), "enqueue export")
		fmt.Printf("✅ Enqueued export task %s -> %s\n", enq.TaskID, enq.Key)
		deadline := time.Now().Add(*waitExport)
		for {
			var doc map[string]any
			err := c.do(http.MethodGet, "/exports/"+enq.Key, alice.Token, nil, &doc)
			if err == nil {
				recs, _ := doc["records"].([]any)
				fmt.Printf("✅ Export ready: %d records\n", len(recs))
				break
			}
			if time.Now().After(deadline) {
				fmt.Printf("ℹ️  Export not ready yet: %v\n", err)
				break
			}
			time.Sleep(2 * time.Second)
		}
	}

	// 6) Cleanup
	if !*keep {
		must(c.do(http.MethodDelete, "/records/"+id, alice.Token, nil, nil), "delete")
		fmt.Println("✅ Deleted record")
	}
	fmt.Printf("🎉 Smoke run OK. RecordID=%s\n", id)
}

// --- helpers ---

type client struct {
	http *http.Client
	base string
}

func (c *client) do(method, path, bearer string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %s -> %d: %s", method, path, res.StatusCode, string(b))
	}
	if out != nil && res.StatusCode != http.StatusNoContent {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func must(err error, step string) {
	if err != nil {
		fatalf("%s: %v", step, err)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func ptr(f float64) *float64 { return &f }

func fmtF(f *float64) string {
	if f == nil {
		return "none"
	}
	return fmt.Sprintf("%g", *f)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
