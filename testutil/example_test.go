package testutil_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/opalrpc/opal"
	"github.com/opalrpc/opal/testutil"
)

type CreateUser struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SearchUsers struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func newUserRouter() *opal.Router {
	r := opal.New(opal.Config{Name: "users"})

	opal.Output[User](opal.Input[CreateUser](r.Mutation("createUser"))).
		Handle(func(ctx context.Context, in CreateUser) (User, error) {
			return User{ID: 123, Name: in.Name, Email: in.Email}, nil
		})

	opal.Output[[]User](opal.Input[SearchUsers](r.Query("searchUsers"))).
		Cache(60 * time.Second).
		Handle(func(ctx context.Context, in SearchUsers) ([]User, error) {
			return []User{{ID: in.Limit, Name: in.Query}}, nil
		})

	opal.Output[User](opal.Input[CreateUser](r.Mutation("importUser"))).
		Handle(func(ctx context.Context, in CreateUser) (User, error) {
			req := opal.RequestFromContext(ctx)
			if req.Header.Get("X-API-Key") != "secret" {
				return User{}, opal.NewError(http.StatusUnauthorized, "invalid api key")
			}
			return User{ID: 1, Name: in.Name, Email: in.Email}, nil
		})

	return r
}

// TestRequestBuilder walks the happy path: build a JSON request, run it
// through the router, and compare the decoded response.
func TestRequestBuilder(t *testing.T) {
	h := newUserRouter().Handler()

	w := testutil.NewRequest().
		POST("/v1/createUser").
		WithJSON(&CreateUser{Name: "Alice", Email: "alice@example.com"}).
		Do(h)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, &User{ID: 123, Name: "Alice", Email: "alice@example.com"})
}

// TestRequestBuilder_Validation shows how to inspect the error envelope a
// failed validation produces.
func TestRequestBuilder_Validation(t *testing.T) {
	h := newUserRouter().Handler()

	w := testutil.NewRequest().
		POST("/v1/createUser").
		WithJSON(&CreateUser{Name: "Alice", Email: "not-an-email"}).
		Do(h)

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	errResp := testutil.AssertErrorMessage(t, w, "Invalid request payload sent")
	testutil.AssertIssue(t, errResp, "email")
}

// TestRequestBuilder_Query shows a query operation driven by URL parameters.
func TestRequestBuilder_Query(t *testing.T) {
	h := newUserRouter().Handler()

	w := testutil.NewRequest().
		GET("/v1/searchUsers").
		WithQuery("query", "golang").
		WithQuery("limit", "10").
		Do(h)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, []User{{ID: 10, Name: "golang"}})
}

// TestRequestBuilder_CustomHeader passes a header the handler reads back out
// of the request context.
func TestRequestBuilder_CustomHeader(t *testing.T) {
	h := newUserRouter().Handler()

	w := testutil.NewRequest().
		POST("/v1/importUser").
		WithJSON(&CreateUser{Name: "Alice", Email: "alice@example.com"}).
		WithHeader("X-API-Key", "secret").
		Do(h)

	testutil.AssertStatus(t, w, http.StatusOK)

	denied := testutil.NewRequest().
		POST("/v1/importUser").
		WithJSON(&CreateUser{Name: "Alice", Email: "alice@example.com"}).
		Do(h)

	testutil.AssertStatus(t, denied, http.StatusUnauthorized)
	testutil.AssertErrorMessage(t, denied, "invalid api key")
}

// TestAssertHeader checks response headers, here the Cache-Control a cached
// query advertises.
func TestAssertHeader(t *testing.T) {
	h := newUserRouter().Handler()

	w := testutil.NewRequest().
		GET("/v1/searchUsers").
		WithQuery("query", "cached").
		Do(h)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "Cache-Control", "max-age=60")
}

// TestDecodeJSON pulls the body into a typed value for ad-hoc checks the
// other assertions do not cover.
func TestDecodeJSON(t *testing.T) {
	h := newUserRouter().Handler()

	w := testutil.NewRequest().
		POST("/v1/createUser").
		WithJSON(&CreateUser{Name: "Bob", Email: "bob@example.com"}).
		Do(h)

	var got User
	testutil.DecodeJSON(t, w, &got)
	if got.ID != 123 {
		t.Errorf("expected id 123, got %d", got.ID)
	}
	if got.Name != "Bob" {
		t.Errorf("expected name Bob, got %q", got.Name)
	}
}
