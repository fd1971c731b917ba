package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tuition/internal/auth"
	"tuition/internal/tuition"
)

const dateLayout = "2006-01-02"

// ---------- Dashboard ----------

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.tuition.Dashboard(c.Request.Context(), auth.TeacherID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ---------- Batches ----------

func (h *Handler) ListBatches(c *gin.Context) {
	batches, err := h.tuition.ListBatches(c.Request.Context(), auth.TeacherID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *Handler) CreateBatch(c *gin.Context) {
	var in tuition.BatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid batch body")
		return
	}
	b, err := h.tuition.CreateBatch(c.Request.Context(), auth.TeacherID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBatch(c *gin.Context) {
	b, err := h.tuition.GetBatch(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) UpdateBatch(c *gin.Context) {
	var in tuition.BatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid batch body")
		return
	}
	b, err := h.tuition.UpdateBatch(c.Request.Context(), auth.TeacherID(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBatch(c *gin.Context) {
	removed, err := h.tuition.DeleteBatch(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "students_removed": removed})
}

// ---------- Students ----------

type studentRequest struct {
	BatchID     string `json:"batch_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	JoiningDate string `json:"joining_date"` // YYYY-MM-DD
}

func (r studentRequest) input() (tuition.StudentInput, bool) {
	in := tuition.StudentInput{BatchID: r.BatchID, Name: r.Name, Phone: r.Phone}
	if d := strings.TrimSpace(r.JoiningDate); d != "" {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return in, false
		}
		in.JoiningDate = t
	}
	return in, true
}

func (h *Handler) bindStudent(c *gin.Context) (tuition.StudentInput, bool) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid student body")
		return tuition.StudentInput{}, false
	}
	in, ok := req.input()
	if !ok {
		badRequest(c, "joining_date must be YYYY-MM-DD")
		return tuition.StudentInput{}, false
	}
	return in, true
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.tuition.ListStudents(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) CreateStudent(c *gin.Context) {
	in, ok := h.bindStudent(c)
	if !ok {
		return
	}
	in.BatchID = c.Param("id")
	st, err := h.tuition.CreateStudent(c.Request.Context(), auth.TeacherID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.tuition.GetStudent(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	in, ok := h.bindStudent(c)
	if !ok {
		return
	}
	st, err := h.tuition.UpdateStudent(c.Request.Context(), auth.TeacherID(c), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.tuition.DeleteStudent(c.Request.Context(), auth.TeacherID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Fees ----------

func (h *Handler) FeeHistory(c *gin.Context) {
	months, err := h.tuition.FeeHistory(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": months})
}

func (h *Handler) SetFee(c *gin.Context) {
	month, err := tuition.ParseMonthKey(c.Param("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var req struct {
		Paid *bool `json:"paid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, `provide {"paid": true|false}`)
		return
	}
	st, err := h.tuition.SetFeePaid(c.Request.Context(), auth.TeacherID(c), c.Param("id"), month, *req.Paid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// MonthView serves a batch's fee sheet; ?month=MM-YYYY picks the month and
// defaults to the current one.
func (h *Handler) MonthView(c *gin.Context) {
	v, err := h.tuition.MonthView(c.Request.Context(), auth.TeacherID(c), c.Param("id"), c.Query("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ---------- Reminders ----------

func (h *Handler) SendReminders(c *gin.Context) {
	reminders, err := h.tuition.SendReminders(c.Request.Context(), auth.TeacherID(c), c.Param("id"), c.Query("month"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"reminders": reminders})
}

func (h *Handler) ListReminders(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			badRequest(c, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	reminders, err := h.tuition.ListReminders(c.Request.Context(), auth.TeacherID(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders})
}
