package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/pong-engine/internal/game"
	"github.com/gin-gonic/gin"
)

// CreateMatchRequest переопределения правил для нового матча
type CreateMatchRequest struct {
	WinScore      *int     `json:"win_score"`
	BallPrepareMs *int     `json:"ball_prepare_ms"`
	MinBallSpeed  *float64 `json:"min_ball_speed"`
	MaxBallSpeed  *float64 `json:"max_ball_speed"`
}

// apply накладывает заданные поля на правила по умолчанию
func (r CreateMatchRequest) apply(rules game.Rules) game.Rules {
	if r.WinScore != nil {
		rules.WinScore = *r.WinScore
	}
	if r.BallPrepareMs != nil {
		rules.BallPrepare = time.Duration(*r.BallPrepareMs) * time.Millisecond
	}
	if r.MinBallSpeed != nil {
		rules.MinBallSpeed = *r.MinBallSpeed
	}
	if r.MaxBallSpeed != nil {
		rules.MaxBallSpeed = *r.MaxBallSpeed
	}
	return rules
}

// InputRequest управление ракеткой
type InputRequest struct {
	Side      string   `json:"side" binding:"required"`
	Direction *float64 `json:"direction" binding:"required"`
}

// handleCreateMatch создаёт матч; тело запроса необязательно
func (rs *RestServer) handleCreateMatch(c *gin.Context) {
	var req CreateMatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Неверный формат запроса")
			return
		}
	}

	m, err := rs.manager.Create(req.apply(rs.manager.Rules()))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Матч создан",
		Data:    m.Snapshot(),
	})
}

// handleListMatches снимки всех матчей
func (rs *RestServer) handleListMatches(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список матчей получен",
		Data:    rs.manager.List(),
	})
}

// handleGetMatch снимок одного матча
func (rs *RestServer) handleGetMatch(c *gin.Context) {
	m, err := rs.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Матч найден",
		Data:    m.Snapshot(),
	})
}

// handleDeleteMatch останавливает и удаляет матч
func (rs *RestServer) handleDeleteMatch(c *gin.Context) {
	if err := rs.manager.Remove(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Матч удалён",
	})
}

// handleInput задаёт направление ракетки
func (rs *RestServer) handleInput(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}

	m, err := rs.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := applyInput(m, req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Ввод принят",
		Data:    m.Snapshot(),
	})
}

func applyInput(m *game.Match, req InputRequest) error {
	side, err := game.ParseSide(req.Side)
	if err != nil {
		return err
	}
	var dir float64
	if req.Direction != nil {
		dir = *req.Direction
	}
	return m.SetInput(side, dir)
}

// handlePause ставит матч на паузу
func (rs *RestServer) handlePause(c *gin.Context) {
	rs.changePhase(c, (*game.Match).Pause, "Матч на паузе")
}

// handleResume снимает матч с паузы
func (rs *RestServer) handleResume(c *gin.Context) {
	rs.changePhase(c, (*game.Match).Resume, "Матч продолжен")
}

func (rs *RestServer) changePhase(c *gin.Context, change func(*game.Match) error, message string) {
	m, err := rs.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := change(m); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: message,
		Data:    m.Snapshot(),
	})
}

// handleResults последние сохранённые итоги; ?limit=N (по умолчанию 20)
func (rs *RestServer) handleResults(c *gin.Context) {
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(c, "Неверный параметр limit")
			return
		}
		limit = n
	}

	results, err := rs.manager.Results(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Результаты получены",
		Data:    results,
	})
}
