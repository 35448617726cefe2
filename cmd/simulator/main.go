package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Actor is one entry of the actors file written by `fleetd seed`.
type Actor struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

type actorsFile struct {
	Actors []Actor `json:"actors"`
}

// Cast assigns actors to the parts they play in a scenario.
type Cast struct {
	Requester Actor
	Commenter Actor
	Reviewers []Actor
	Committer Actor
	Mechanics []Actor
}

func loadCast(path string) (Cast, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Cast{}, fmt.Errorf("read actors file: %w", err)
	}
	var file actorsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return Cast{}, fmt.Errorf("decode actors file: %w", err)
	}
	return castFrom(file.Actors)
}

func castFrom(actors []Actor) (Cast, error) {
	var c Cast
	var operators []Actor
	for _, a := range actors {
		switch a.Role {
		case "operator":
			operators = append(operators, a)
		case "manager":
			c.Reviewers = append(c.Reviewers, a)
		case "admin":
			c.Committer = a
		case "mechanic":
			c.Mechanics = append(c.Mechanics, a)
		}
	}
	if len(operators) < 2 || len(c.Reviewers) == 0 || c.Committer.ID == "" || len(c.Mechanics) == 0 {
		return Cast{}, fmt.Errorf("actors file needs two operators, a manager, an admin and a mechanic")
	}
	c.Requester, c.Commenter = operators[0], operators[1]
	return c, nil
}

// APIError is an error envelope returned by the API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the maintenance API as different actors.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *Client) do(as Actor, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+as.Token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Error APIError `json:"error"`
		}
		_ = json.Unmarshal(data, &envelope)
		envelope.Error.Status = resp.StatusCode
		return &envelope.Error
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

type request struct {
	ID           string   `json:"id"`
	CurrentStage string   `json:"current_stage"`
	Status       string   `json:"status"`
	FinalCost    *float64 `json:"final_cost"`
}

type proposal struct {
	ID         string `json:"id"`
	MechanicID string `json:"mechanic_id"`
	Status     string `json:"status"`
}

type offer struct {
	ProposalID     string  `json:"proposal_id"`
	AcceptedAmount float64 `json:"accepted_amount"`
	IsPrimary      bool    `json:"is_primary"`
}

type stageResult struct {
	Request request `json:"request"`
}

// Scenario drives one request from submission to completed work.
type Scenario struct {
	Client *Client
	Cast   Cast
	Rand   *rand.Rand
	// MaxRounds bounds the counter offers exchanged per proposal.
	MaxRounds int
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Run executes the scenario and returns the completed request.
func (s *Scenario) Run(vehicleID string) (*request, error) {
	c, cast := s.Client, s.Cast
	reviewer := cast.Reviewers[s.Rand.Intn(len(cast.Reviewers))]
	estimate := roundCents(200 + s.Rand.Float64()*800)

	var req request
	err := c.do(cast.Requester, "POST", "/requests", map[string]any{
		"vehicle_id":     vehicleID,
		"description":    "Scheduled service",
		"priority":       []string{"low", "medium", "high", "critical"}[s.Rand.Intn(4)],
		"estimated_cost": estimate,
	}, &req)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	base := "/requests/" + req.ID
	logger := log.WithFields(log.Fields{"request_id": req.ID, "vehicle_id": vehicleID})
	logger.WithField("estimated_cost", estimate).Info("Created maintenance request")

	if err := c.do(cast.Commenter, "POST", base+"/process-stage", map[string]string{"comments": "looks necessary"}, nil); err != nil {
		return nil, fmt.Errorf("comment stage: %w", err)
	}

	mechanicIDs := make([]string, 0, len(cast.Mechanics))
	for _, m := range cast.Mechanics {
		mechanicIDs = append(mechanicIDs, m.ID)
	}
	if err := c.do(reviewer, "POST", base+"/deliberation/select-mechanics", map[string]any{"mechanic_ids": mechanicIDs}, nil); err != nil {
		return nil, fmt.Errorf("select mechanics: %w", err)
	}

	type quote struct {
		mechanic Actor
		proposal proposal
		amount   float64
	}
	quotes := make([]quote, 0, len(cast.Mechanics))
	for _, m := range cast.Mechanics {
		amount := roundCents(estimate * (0.9 + s.Rand.Float64()*0.4))
		var p proposal
		if err := c.do(m, "POST", base+"/deliberation/propose", map[string]any{"amount": amount}, &p); err != nil {
			return nil, fmt.Errorf("propose as %s: %w", m.Username, err)
		}
		logger.WithFields(log.Fields{"mechanic": m.Username, "amount": amount}).Info("Mechanic proposed")
		quotes = append(quotes, quote{mechanic: m, proposal: p, amount: amount})
	}

	// Negotiate the cheapest quote down, then accept it.
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.amount < best.amount {
			best = q
		}
	}
	pbase := base + "/deliberation/proposals/" + best.proposal.ID
	standing := best.amount
	acceptor := reviewer
	for round := 0; round < s.MaxRounds; round++ {
		counter := roundCents(standing * 0.9)
		if err := c.do(reviewer, "POST", pbase+"/negotiate", map[string]any{"amount": counter}, nil); err != nil {
			return nil, fmt.Errorf("reviewer counter: %w", err)
		}
		standing, acceptor = counter, best.mechanic
		logger.WithFields(log.Fields{"round": round + 1, "amount": counter}).Info("Reviewer countered")
		if s.Rand.Intn(2) == 0 {
			break
		}
		reply := roundCents((counter + best.amount) / 2)
		if err := c.do(best.mechanic, "POST", pbase+"/negotiate", map[string]any{"amount": reply}, nil); err != nil {
			return nil, fmt.Errorf("mechanic counter: %w", err)
		}
		standing, acceptor = reply, reviewer
		logger.WithFields(log.Fields{"round": round + 1, "amount": reply}).Info("Mechanic countered")
	}

	var accepted offer
	if err := c.do(acceptor, "POST", pbase+"/accept", map[string]string{"comments": "agreed"}, &accepted); err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	logger.WithFields(log.Fields{"amount": accepted.AcceptedAmount, "primary": accepted.IsPrimary}).Info("Offer accepted")

	if err := c.do(reviewer, "POST", base+"/deliberation/finalize", nil, nil); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	for _, step := range []Actor{reviewer, cast.Reviewers[len(cast.Reviewers)-1], cast.Committer} {
		var res stageResult
		if err := c.do(step, "POST", base+"/process-stage", nil, &res); err != nil {
			return nil, fmt.Errorf("process stage as %s: %w", step.Username, err)
		}
		logger.WithField("stage", res.Request.CurrentStage).Info("Stage processed")
	}

	if err := c.do(reviewer, "POST", base+"/start-work", nil, nil); err != nil {
		return nil, fmt.Errorf("start work: %w", err)
	}
	var done request
	if err := c.do(reviewer, "POST", base+"/complete-work", map[string]string{"comments": "work done"}, &done); err != nil {
		return nil, fmt.Errorf("complete work: %w", err)
	}
	logger.WithField("final_cost", *done.FinalCost).Info("Maintenance completed")
	return &done, nil
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}
	actorsPath := os.Getenv("SIM_ACTORS_FILE")
	if actorsPath == "" {
		actorsPath = "actors.json"
	}
	runs := envInt("SIM_RUNS", 5)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 2)) * time.Second

	cast, err := loadCast(actorsPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load actors; run `fleetd seed` first")
	}

	log.WithFields(log.Fields{
		"api_url":  apiURL,
		"runs":     runs,
		"interval": interval,
	}).Info("Starting maintenance simulation")

	scenario := &Scenario{
		Client:    &Client{BaseURL: apiURL, HTTP: &http.Client{Timeout: 10 * time.Second}},
		Cast:      cast,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		MaxRounds: 3,
	}
	failed := 0
	for i := 0; i < runs; i++ {
		if _, err := scenario.Run(fmt.Sprintf("vehicle-%d", i+1)); err != nil {
			log.WithError(err).Error("Scenario failed")
			failed++
		}
		if i < runs-1 {
			time.Sleep(interval)
		}
	}
	log.WithFields(log.Fields{"runs": runs, "failed": failed}).Info("Simulation finished")
	if failed > 0 {
		os.Exit(1)
	}
}
