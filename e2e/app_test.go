package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite drives the running server over HTTP.
type E2ETestSuite struct {
	suite.Suite
	client *http.Client
}

func (suite *E2ETestSuite) SetupSuite() {
	suite.client = &http.Client{Timeout: 10 * time.Second}
}

func (suite *E2ETestSuite) token(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(suite.T(), err, "could not sign token")
	return signed
}

func (suite *E2ETestSuite) request(method, path, userID string, body any, out any) int {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, appURL+path, &buf)
	require.NoError(suite.T(), err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+suite.token(userID))
	}

	resp, err := suite.client.Do(req)
	require.NoError(suite.T(), err, "%s %s failed", method, path)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (suite *E2ETestSuite) TestCompleteUserFlow() {
	const user = "e2e-user-flow"

	// Log a purchase
	var tracked struct {
		Message string         `json:"message"`
		Expense map[string]any `json:"expense"`
	}
	status := suite.request(http.MethodPost, "/api/chat", user, map[string]string{"message": "I spent $12.50 on lunch"}, &tracked)
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Contains(suite.T(), tracked.Message, "Got it! I've tracked $12.5 for food (lunch).")
	require.NotNil(suite.T(), tracked.Expense)
	assert.Equal(suite.T(), "2024-03-02", tracked.Expense["date"])

	// Ask for advice
	var advice struct {
		Message string          `json:"message"`
		Expense json.RawMessage `json:"expense"`
	}
	status = suite.request(http.MethodPost, "/api/chat", user, map[string]string{"message": "How can I save?"}, &advice)
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), "Try setting a weekly budget for dining out.", advice.Message)
	assert.Equal(suite.T(), "null", string(advice.Expense))

	// Expense list
	var list struct {
		Expenses []struct {
			Amount   json.Number `json:"amount"`
			Category string      `json:"category"`
		} `json:"expenses"`
		Total json.Number `json:"total"`
	}
	status = suite.request(http.MethodGet, "/api/expenses", user, nil, &list)
	require.Equal(suite.T(), http.StatusOK, status)
	require.Len(suite.T(), list.Expenses, 1)
	assert.Equal(suite.T(), "12.5", list.Expenses[0].Amount.String())
	assert.Equal(suite.T(), "12.5", list.Total.String())

	// Conversation history
	var turns []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	status = suite.request(http.MethodGet, "/api/messages", user, nil, &turns)
	require.Equal(suite.T(), http.StatusOK, status)
	require.Len(suite.T(), turns, 4)
	assert.Equal(suite.T(), "user", turns[0].Role)
	assert.Equal(suite.T(), "I spent $12.50 on lunch", turns[0].Content)
	assert.Equal(suite.T(), "assistant", turns[3].Role)
}

func (suite *E2ETestSuite) TestRejectsAnonymousChat() {
	var body map[string]string
	status := suite.request(http.MethodPost, "/api/chat", "", map[string]string{"message": "hi"}, &body)
	assert.Equal(suite.T(), http.StatusUnauthorized, status)
	assert.NotEmpty(suite.T(), body["error"])
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
