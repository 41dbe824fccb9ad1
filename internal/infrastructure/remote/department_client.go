package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"staffsync/internal/domain/department"
)

const departmentService = "department-service"

// DepartmentClient reads departments for display enrichment only.
type DepartmentClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewDepartmentClient(baseURL string, timeout time.Duration, breaker BreakerConfig, log *zap.Logger) *DepartmentClient {
	return &DepartmentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker(departmentService, breaker, log),
	}
}

// Get returns nil, nil when the department does not exist.
func (c *DepartmentClient) Get(ctx context.Context, id int64) (*department.Department, error) {
	endpoint := c.baseURL + "/api/v1/departments/" + strconv.FormatInt(id, 10)

	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusNotFound:
			return (*department.Department)(nil), nil
		default:
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		d := &department.Department{}
		if err := json.NewDecoder(resp.Body).Decode(d); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return d, nil
	})
	if err != nil {
		return nil, unavailable(departmentService, err)
	}
	return res.(*department.Department), nil
}
