package ucn

import (
	"strings"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
)

// Mapper turns university payloads into domain values. Field aliases and
// loose typing stop here; the domain only sees normalized shapes.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// StudentFromLogin maps a successful login payload.
func (m *Mapper) StudentFromLogin(dto *LoginResponseDTO, email string) *student.Student {
	s := &student.Student{
		Rut:     student.NormalizeRut(dto.Rut.String()),
		Email:   strings.TrimSpace(email),
		Careers: make([]student.Career, 0, len(dto.Carreras)),
	}
	for _, c := range dto.Carreras {
		code := c.Codigo.String()
		if code == "" {
			continue
		}
		s.Careers = append(s.Careers, student.Career{
			Code:    code,
			Name:    strings.TrimSpace(c.Nombre),
			Catalog: c.Catalogo.String(),
		})
	}
	return s
}

// AttemptFromDTO maps one avance row.
func (m *Mapper) AttemptFromDTO(dto AttemptDTO) academic.CourseAttemptRecord {
	grade := dto.Nota.Value
	if grade == nil {
		grade = dto.Grade.Value
	}
	return academic.CourseAttemptRecord{
		CourseCode: dto.Course.String(),
		TermCode:   dto.Period.String(),
		StatusText: strings.TrimSpace(dto.Status),
		Grade:      grade,
		NRC:        dto.NRC.String(),
	}
}

// AttemptsFromDTOs maps avance rows, dropping rows without a course code.
func (m *Mapper) AttemptsFromDTOs(dtos []AttemptDTO) []academic.CourseAttemptRecord {
	out := make([]academic.CourseAttemptRecord, 0, len(dtos))
	for _, dto := range dtos {
		r := m.AttemptFromDTO(dto)
		if r.CourseCode == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CourseFromDTO maps one curriculum row. Rows without a code are rejected.
func (m *Mapper) CourseFromDTO(dto CurriculumCourseDTO) (academic.CurriculumCourse, bool) {
	code := dto.Codigo.String()
	if code == "" {
		return academic.CurriculumCourse{}, false
	}
	level := firstInt(dto.Nivel, dto.Semestre)
	if level < 1 {
		level = 1
	}
	return academic.CurriculumCourse{
		Code:          code,
		Name:          firstNonEmpty(dto.Asignatura, dto.Nombre, dto.Materia),
		Credits:       max(firstInt(dto.Creditos, dto.SCT, dto.Credits), 0),
		Level:         level,
		Prerequisites: academic.ParsePrerequisites(dto.Prereq),
	}, true
}

// CoursesFromDTOs maps a curriculum payload.
func (m *Mapper) CoursesFromDTOs(dtos []CurriculumCourseDTO) []academic.CurriculumCourse {
	out := make([]academic.CurriculumCourse, 0, len(dtos))
	for _, dto := range dtos {
		if c, ok := m.CourseFromDTO(dto); ok {
			out = append(out, c)
		}
	}
	return out
}

// EnrolledFromDTO maps one row of the course list.
func (m *Mapper) EnrolledFromDTO(dto EnrolledCourseDTO) academic.EnrolledCourse {
	code := dto.Codigo.String()
	if code == "" {
		code = strings.TrimSpace(dto.Sigla)
	}
	return academic.EnrolledCourse{
		Code:    code,
		Name:    firstNonEmpty(dto.Nombre, dto.Asignatura, dto.Materia),
		Credits: max(firstInt(dto.Creditos, dto.SCT, dto.Credits), 0),
		Level:   firstInt(dto.Semestre, dto.Nivel),
		Period:  dto.Period.String(),
		Status:  MapEnrolledStatus(firstNonEmpty(dto.Estado, dto.Situacion, dto.Status)),
		Section: firstNonEmpty(dto.Seccion.String(), dto.Grupo.String(), dto.Section.String()),
		Teacher: firstNonEmpty(dto.Profesor, dto.Docente, dto.Teacher),
	}
}

// MapEnrolledStatus maps the course-list status vocabulary. Unlike the
// history classifier, the in-progress words are checked first.
func MapEnrolledStatus(text string) academic.CourseStatus {
	s := strings.ToLower(text)
	switch {
	case containsAny(s, "cursando", "inscrito", "actual"):
		return academic.StatusInProgress
	case containsAny(s, "aprobado", "pasado"):
		return academic.StatusApproved
	case containsAny(s, "reprobado", "reprobada", "fallido"):
		return academic.StatusFailed
	default:
		return academic.StatusPending
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...FlexNumber) int {
	for _, v := range values {
		if n, ok := v.Int(); ok {
			return n
		}
	}
	return 0
}
