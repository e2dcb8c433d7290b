package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/karki-p/userd/internal/storage"
)

const (
	msgFieldsRequired = "name, email, and date are required"
	msgEmailTaken     = "Email must be unique"
	msgNotFound       = "User not found"
	msgStorageFailure = "Storage failure"
	msgDeleted        = "Deleted"
)

// userRequest is the typed body shape for create and update. Fields are
// checked for presence only; date text is stored verbatim.
type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

func (r userRequest) complete() bool {
	return r.Name != "" && r.Email != "" && r.Date != ""
}

func (r userRequest) params() storage.UserParams {
	return storage.UserParams{Name: r.Name, Email: r.Email, Date: r.Date}
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

func toUserResponse(u storage.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Date: u.Date}
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Version string `json:"version"`
	Path    string `json:"path"`
}

type healthErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, healthErrorResponse{Status: "error", Message: err.Error()})
	}
	defer conn.Close()

	version, err := storage.EngineVersion(ctx, conn)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, healthErrorResponse{Status: "error", Message: err.Error()})
	}

	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Engine:  "sqlite",
		Version: version,
		Path:    s.store.Path(),
	})
}

func (s *Server) handleCreateUser(c echo.Context) error {
	req := bindUserRequest(c)
	if !req.complete() {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgFieldsRequired})
	}

	ctx := c.Request().Context()
	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return s.storageFault(c, err)
	}
	defer conn.Close()

	user, err := s.store.Users.Create(ctx, conn, req.params())
	if err != nil {
		return s.mapRepoError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return s.storageFault(c, err)
	}
	defer conn.Close()

	users, err := s.store.Users.List(ctx, conn)
	if err != nil {
		return s.mapRepoError(c, err)
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetUser(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: msgNotFound})
	}

	ctx := c.Request().Context()
	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return s.storageFault(c, err)
	}
	defer conn.Close()

	user, err := s.store.Users.GetByID(ctx, conn, id)
	if err != nil {
		return s.mapRepoError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateUser(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: msgNotFound})
	}

	req := bindUserRequest(c)
	if !req.complete() {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgFieldsRequired})
	}

	ctx := c.Request().Context()
	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return s.storageFault(c, err)
	}
	defer conn.Close()

	user, err := s.store.Users.Update(ctx, conn, id, req.params())
	if err != nil {
		return s.mapRepoError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) handleDeleteUser(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: msgNotFound})
	}

	ctx := c.Request().Context()
	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return s.storageFault(c, err)
	}
	defer conn.Close()

	if err := s.store.Users.Delete(ctx, conn, id); err != nil {
		return s.mapRepoError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgDeleted})
}

// bindUserRequest decodes the body into the typed shape. A malformed or
// absent body yields the zero value, which fails the presence check the
// same way an empty JSON object would.
func bindUserRequest(c echo.Context) userRequest {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return userRequest{}
	}
	return req
}

func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// mapRepoError translates the storage sentinels onto status codes. Anything
// unclassified is a 500 with a generic message; internal detail goes to the
// log, not the client.
func (s *Server) mapRepoError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: msgNotFound})
	case errors.Is(err, storage.ErrEmailTaken):
		return c.JSON(http.StatusConflict, errorResponse{Error: msgEmailTaken})
	}
	return s.storageFault(c, err)
}

func (s *Server) storageFault(c echo.Context, err error) error {
	if errors.Is(err, storage.ErrBusy) {
		s.logger.Warn("storage busy", "err", err)
	} else {
		s.logger.Error("storage fault", "err", err)
	}
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: msgStorageFailure})
}
