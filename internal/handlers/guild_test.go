package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

func setupGuildRouter(handler *GuildHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/guilds", handler.CreateGuild)
	r.GET("/guilds", handler.ListGuilds)
	r.GET("/guilds/:guild_id", handler.GetGuildHierarchy)
	return r
}

func TestCreateGuildSuccess(t *testing.T) {
	topo := new(mocks.TopologyRepositoryMock)
	handler := NewGuildHandler(topo)
	router := setupGuildRouter(handler)

	topo.On("CreateGuild", mock.Anything, int64(1), "Moon Base", (*string)(nil)).
		Return(models.Guild{ID: 5, OwnerID: 1, Name: "Moon Base"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/guilds", bytes.NewBufferString(`{"name":"Moon Base"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Guild
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(5), resp.ID)
	topo.AssertExpectations(t)
}

func TestCreateGuildMissingName(t *testing.T) {
	handler := NewGuildHandler(new(mocks.TopologyRepositoryMock))
	router := setupGuildRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/guilds", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListGuildsSuccess(t *testing.T) {
	topo := new(mocks.TopologyRepositoryMock)
	handler := NewGuildHandler(topo)
	router := setupGuildRouter(handler)

	topo.On("ListGuildsForUser", mock.Anything, int64(1)).
		Return([]models.Guild{{ID: 5, Name: "Moon Base"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/guilds", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	topo.AssertExpectations(t)
}

func TestGetGuildHierarchyNotFound(t *testing.T) {
	topo := new(mocks.TopologyRepositoryMock)
	handler := NewGuildHandler(topo)
	router := setupGuildRouter(handler)

	topo.On("GetGuildHierarchy", mock.Anything, int64(99)).
		Return(models.GuildHierarchy{}, repositories.ErrGuildNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/guilds/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	topo.AssertExpectations(t)
}

func TestGetGuildHierarchyInvalidID(t *testing.T) {
	handler := NewGuildHandler(new(mocks.TopologyRepositoryMock))
	router := setupGuildRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/guilds/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
