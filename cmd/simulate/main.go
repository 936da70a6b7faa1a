// simulate drives claim workflows against a running gateway (normally backed
// by stub-upstream) and reports per-operation latency and outcome counts.
// Identities and policy numbers follow the stub's seeding patterns.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insurego/claims-gateway/internal/auth"
)

var providers = []string{"BlueShield Health", "MediCare Plus", "Sunrise Assurance", "Unity Mutual"}

type SimConfig struct {
	GatewayBaseURL string
	JWTSecret      string
	Duration       time.Duration
	Workers        int
	WorkflowRatio  float64 // verify-then-file
	ReviewRatio    float64
	ReadRatio      float64
	PolicyCount    int
	DoctorCount    int
}

type ClaimPool struct {
	mu     sync.RWMutex
	claims []string
}

func (cp *ClaimPool) Add(id string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.claims = append(cp.claims, id)
}

func (cp *ClaimPool) Random(rng *rand.Rand) (string, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if len(cp.claims) == 0 {
		return "", false
	}
	return cp.claims[rng.Intn(len(cp.claims))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64 // expected workflow rejections (expired, not verified, terminal)
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if rejected {
		atomic.AddInt64(&om.Rejected, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]
	return avg, min, max, p50, p95
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type Metrics struct {
	Verify      OperationMetrics
	File        OperationMetrics
	Review      OperationMetrics
	ListClaims  OperationMetrics
	ListPolicies OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *ClaimPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d workflow=%.2f review=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.WorkflowRatio, cfg.ReviewRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		pool:   &ClaimPool{},
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		GatewayBaseURL: getEnv("SIM_GATEWAY_URL", "http://localhost:8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		WorkflowRatio:  getFloat("SIM_WORKFLOW_RATIO", 0.4),
		ReviewRatio:    getFloat("SIM_REVIEW_RATIO", 0.2),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.4),
		PolicyCount:    getInt("SIM_POLICY_COUNT", 40),
		DoctorCount:    getInt("SIM_DOCTOR_COUNT", 10),
	}

	total := cfg.WorkflowRatio + cfg.ReviewRatio + cfg.ReadRatio
	if total > 0 {
		cfg.WorkflowRatio /= total
		cfg.ReviewRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required (must match the gateway)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.WorkflowRatio:
				s.doWorkflow(ctx, rng)
			case r < s.config.WorkflowRatio+s.config.ReviewRatio:
				s.doReview(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doListClaims(ctx, rng)
				} else {
					s.doListPolicies(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doctorToken(rng *rand.Rand) (string, error) {
	n := rng.Intn(s.config.DoctorCount) + 1
	return auth.GenerateToken(auth.Identity{
		UserID: fmt.Sprintf("D-%d", n),
		Name:   fmt.Sprintf("Dr. Sim %d", n),
		Role:   auth.RoleDoctor,
	}, s.config.JWTSecret, time.Hour)
}

func (s *Simulator) patientToken(rng *rand.Rand) (string, error) {
	n := rng.Intn(s.config.PolicyCount) + 1
	return auth.GenerateToken(auth.Identity{
		UserID: fmt.Sprintf("P-%d", n),
		Name:   fmt.Sprintf("Patient Sim %d", n),
		Role:   auth.RolePatient,
	}, s.config.JWTSecret, time.Hour)
}

func (s *Simulator) providerToken(rng *rand.Rand) (string, error) {
	name := providers[rng.Intn(len(providers))]
	return auth.GenerateToken(auth.Identity{
		UserID:   "PRV-" + strconv.Itoa(rng.Intn(100)),
		Name:     name + " Reviewer",
		Role:     auth.RoleProvider,
		Provider: name,
	}, s.config.JWTSecret, time.Hour)
}

func (s *Simulator) randomPolicy(rng *rand.Rand) string {
	return fmt.Sprintf("POL-%d", 1000+rng.Intn(s.config.PolicyCount))
}

// doWorkflow runs the doctor's verify-then-file sequence. A verification
// rejection (expired or unknown policy) ends the workflow as an expected
// outcome, not an error.
func (s *Simulator) doWorkflow(ctx context.Context, rng *rand.Rand) {
	token, err := s.doctorToken(rng)
	if err != nil {
		return
	}
	policyNo := s.randomPolicy(rng)

	start := time.Now()
	status, _, err := s.call(ctx, token, http.MethodPost,
		fmt.Sprintf("/policies/%s/verify", policyNo), nil)
	s.metrics.Verify.Record(time.Since(start), err == nil && status == http.StatusOK,
		status == http.StatusConflict || status == http.StatusNotFound)

	if err != nil || status != http.StatusOK {
		return
	}

	body := map[string]any{
		"policyNo":             policyNo,
		"totalBillAmount":      float64(rng.Intn(1900) + 100),
		"diagnosisCode":        "G44.1",
		"treatmentDescription": "Simulated visit",
	}

	start = time.Now()
	status, respBody, err := s.call(ctx, token, http.MethodPost, "/claims", body)
	created := err == nil && status == http.StatusCreated
	s.metrics.File.Record(time.Since(start), created, status == http.StatusPreconditionFailed)

	if created {
		var resp struct {
			ClaimID string `json:"claimId"`
		}
		if json.Unmarshal(respBody, &resp) == nil && resp.ClaimID != "" {
			s.pool.Add(resp.ClaimID)
		}
	}
}

func (s *Simulator) doReview(ctx context.Context, rng *rand.Rand) {
	claimID, ok := s.pool.Random(rng)
	if !ok {
		return
	}

	token, err := s.providerToken(rng)
	if err != nil {
		return
	}

	decision := "APPROVE"
	if rng.Intn(4) == 0 {
		decision = "REJECT"
	}
	body := map[string]string{
		"decision": decision,
		"notes":    "simulated review",
	}

	start := time.Now()
	status, _, err := s.call(ctx, token, http.MethodPut,
		fmt.Sprintf("/claims/%s/review", claimID), body)
	s.metrics.Review.Record(time.Since(start), err == nil && status == http.StatusOK,
		status == http.StatusConflict)
}

func (s *Simulator) doListClaims(ctx context.Context, rng *rand.Rand) {
	var (
		token string
		err   error
	)
	switch rng.Intn(3) {
	case 0:
		token, err = s.doctorToken(rng)
	case 1:
		token, err = s.patientToken(rng)
	default:
		token, err = s.providerToken(rng)
	}
	if err != nil {
		return
	}

	start := time.Now()
	status, _, err := s.call(ctx, token, http.MethodGet, "/claims", nil)
	s.metrics.ListClaims.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListPolicies(ctx context.Context, rng *rand.Rand) {
	token, err := s.patientToken(rng)
	if err != nil {
		return
	}

	start := time.Now()
	status, _, err := s.call(ctx, token, http.MethodGet, "/policies", nil)
	s.metrics.ListPolicies.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) call(ctx context.Context, token, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.GatewayBaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Verify Policy", &s.metrics.Verify)
	printOperationReport("File Claim", &s.metrics.File)
	printOperationReport("Review Claim", &s.metrics.Review)
	printOperationReport("List Claims", &s.metrics.ListClaims)
	printOperationReport("List Policies", &s.metrics.ListPolicies)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Workflow rejections: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
