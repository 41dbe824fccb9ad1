package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"staffsync/internal/domain/employee"
)

const employeeService = "employee-service"

// EmployeeClient asks the employee service about employees owned there.
// Each method makes exactly one HTTP call; callers decide what a failure means.
type EmployeeClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewEmployeeClient(baseURL string, timeout time.Duration, breaker BreakerConfig, log *zap.Logger) *EmployeeClient {
	return &EmployeeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker(employeeService, breaker, log),
	}
}

type countResponse struct {
	DepartmentID int64 `json:"departmentId"`
	Count        int64 `json:"count"`
}

// CountByDepartment returns how many employees reference departmentID.
func (c *EmployeeClient) CountByDepartment(ctx context.Context, departmentID int64) (int64, error) {
	q := url.Values{"departmentId": []string{strconv.FormatInt(departmentID, 10)}}
	endpoint := c.baseURL + "/api/v1/employees/count?" + q.Encode()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var body countResponse
		status, err := c.get(ctx, endpoint, &body)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", status)
		}
		return body.Count, nil
	})
	if err != nil {
		return 0, unavailable(employeeService, err)
	}
	return res.(int64), nil
}

// Exists reports whether employee id exists. A 404 is an answer, not a failure.
func (c *EmployeeClient) Exists(ctx context.Context, id int64) (bool, error) {
	endpoint := c.baseURL + "/api/v1/employees/" + strconv.FormatInt(id, 10)

	res, err := c.breaker.Execute(func() (interface{}, error) {
		status, err := c.get(ctx, endpoint, nil)
		if err != nil {
			return nil, err
		}
		switch status {
		case http.StatusOK:
			return true, nil
		case http.StatusNotFound:
			return false, nil
		default:
			return nil, fmt.Errorf("unexpected status %d", status)
		}
	})
	if err != nil {
		return false, unavailable(employeeService, err)
	}
	return res.(bool), nil
}

// Get returns nil, nil when the employee does not exist.
func (c *EmployeeClient) Get(ctx context.Context, id int64) (*employee.Employee, error) {
	endpoint := c.baseURL + "/api/v1/employees/" + strconv.FormatInt(id, 10)

	res, err := c.breaker.Execute(func() (interface{}, error) {
		e := &employee.Employee{}
		status, err := c.get(ctx, endpoint, e)
		if err != nil {
			return nil, err
		}
		switch status {
		case http.StatusOK:
			return e, nil
		case http.StatusNotFound:
			return (*employee.Employee)(nil), nil
		default:
			return nil, fmt.Errorf("unexpected status %d", status)
		}
	})
	if err != nil {
		return nil, unavailable(employeeService, err)
	}
	return res.(*employee.Employee), nil
}

// ListByDepartment returns the employees referencing departmentID.
func (c *EmployeeClient) ListByDepartment(ctx context.Context, departmentID int64) ([]*employee.Employee, error) {
	q := url.Values{"departmentId": []string{strconv.FormatInt(departmentID, 10)}}
	endpoint := c.baseURL + "/api/v1/employees?" + q.Encode()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var list []*employee.Employee
		status, err := c.get(ctx, endpoint, &list)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", status)
		}
		return list, nil
	})
	if err != nil {
		return nil, unavailable(employeeService, err)
	}
	return res.([]*employee.Employee), nil
}

func (c *EmployeeClient) get(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
