package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	config "github.com/tutorhive/tutorhive/configs"
	"github.com/tutorhive/tutorhive/materials"
)

type AddMaterialRequest struct {
	// legacy form: just a label
	Label string `json:"label,omitempty"`
	// structured form
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Location string `json:"location,omitempty"`
	Content  string `json:"content,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Visible  bool   `json:"visible,omitempty"`
}

func (r *AddMaterialRequest) toMaterial() (materials.Material, error) {
	if r.Name == "" && r.Kind == "" {
		if r.Label == "" {
			return materials.Material{}, fmt.Errorf("either a label or a structured material is required")
		}
		return materials.Legacy(r.Label), nil
	}
	return materials.FromStructured(materials.Structured{
		Name:     r.Name,
		Kind:     materials.Kind(r.Kind),
		Location: r.Location,
		Content:  r.Content,
		Size:     r.Size,
		Mime:     r.Mime,
		Visible:  r.Visible,
	}), nil
}

func AddMaterial(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req AddMaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	material, err := req.toMaterial()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sess, err := sessionSvc.AddMaterial(sessionID, tutorID, material)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func RemoveMaterial(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid material index"})
	}

	sess, err := sessionSvc.RemoveMaterial(sessionID, tutorID, index)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(sess)
}

type materialResponse struct {
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Location string `json:"location,omitempty"`
	Content  string `json:"content,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Visible  bool   `json:"visible,omitempty"`
}

func GetSessionMaterials(c *fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := sessionSvc.Get(sessionID)
	if err != nil {
		return serviceError(c, err)
	}
	isTutor := sess.TutorID == userID
	if !isTutor && (sess.StudentID == nil || *sess.StudentID != userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have access to this session's materials"})
	}

	out := make([]materialResponse, 0, len(sess.Materials))
	for _, m := range materials.DecodeAll(sess.Materials) {
		if m.IsLegacy() {
			out = append(out, materialResponse{Type: "legacy", Label: m.Label})
			continue
		}
		s := m.Structured
		if !s.Visible && !isTutor {
			continue
		}
		out = append(out, materialResponse{
			Type:     "structured",
			Name:     s.Name,
			Kind:     string(s.Kind),
			Location: s.Location,
			Content:  s.Content,
			Size:     s.Size,
			Mime:     s.Mime,
			Visible:  s.Visible,
		})
	}
	return c.JSON(out)
}

// UploadMaterial stores a file with the object-storage provider and attaches
// it to the session as a structured material.
func UploadMaterial(c *fiber.Ctx) error {
	tutorID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	file, err := c.FormFile("material")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Material file is required."})
	}

	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Upload service unavailable."})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadResult, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:   "tutorhive_materials",
		PublicID: fmt.Sprintf("session_%s_%s", sessionID, file.Filename),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload file."})
	}

	mime := file.Header.Get("Content-Type")
	sess, err := sessionSvc.AddMaterial(sessionID, tutorID, materials.FromStructured(materials.Structured{
		Name:     file.Filename,
		Kind:     kindForMime(mime),
		Location: uploadResult.SecureURL,
		Size:     file.Size,
		Mime:     mime,
		Visible:  true,
	}))
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func kindForMime(mime string) materials.Kind {
	switch {
	case len(mime) >= 5 && mime[:5] == "video":
		return materials.KindVideo
	case len(mime) >= 5 && mime[:5] == "image":
		return materials.KindImage
	case mime == "text/plain":
		return materials.KindText
	case mime == "application/vnd.ms-powerpoint" ||
		mime == "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return materials.KindPresentation
	}
	return materials.KindDocument
}
