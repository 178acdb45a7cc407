package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

/*
=======================
  INPUT STRUCT
=======================
*/

// MultipartProductInput records which fields were present in the form so
// partial updates only touch what the admin actually submitted.
type MultipartProductInput struct {
	Name          string
	NameSet       bool
	Price         float64
	PriceSet      bool
	CategoryID    string
	CategoryIDSet bool
	BrandID       string
	BrandIDSet    bool
	Stock         int
	StockSet      bool
	IsActive      bool
	IsActiveSet   bool
	Specs         models.ProductSpecs
	SpecsSet      bool
	ImagePaths    []string
	ImagesSet     bool
}

/*
=======================
  PARSER
=======================
*/

func parseMultipartProductRequest(c *gin.Context) (MultipartProductInput, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return MultipartProductInput{}, err
	}

	input := MultipartProductInput{}

	// ---- STRING FIELDS ----

	if value, ok := c.GetPostForm("name"); ok {
		input.Name = strings.TrimSpace(value)
		input.NameSet = true
	}

	if value, ok := c.GetPostForm("category_id"); ok {
		input.CategoryID = strings.TrimSpace(value)
		input.CategoryIDSet = true
	}

	if value, ok := c.GetPostForm("brand_id"); ok {
		input.BrandID = strings.TrimSpace(value)
		input.BrandIDSet = true
	}

	// ---- NUMBER FIELDS ----

	if value, ok := c.GetPostForm("price"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return MultipartProductInput{}, err
		}
		input.Price = parsed
		input.PriceSet = true
	}

	if value, ok := c.GetPostForm("stock"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return MultipartProductInput{}, err
		}
		input.Stock = parsed
		input.StockSet = true
	}

	// ---- BOOL FIELDS ----

	if value, ok := c.GetPostForm("isActive"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return MultipartProductInput{}, err
		}
		input.IsActive = parsed
		input.IsActiveSet = true
	}

	// ---- SPEC FIELDS ----

	specs, specsSet := parseSpecFields(c)
	input.Specs = specs
	input.SpecsSet = specsSet

	// ---- IMAGE FILES ----

	form := c.Request.MultipartForm
	if form != nil && len(form.File["images"]) > 0 {
		for _, file := range form.File["images"] {
			imagePath, err := saveImage(file)
			if err != nil {
				return MultipartProductInput{}, err
			}
			input.ImagePaths = append(input.ImagePaths, imagePath)
		}
		input.ImagesSet = true
	} else if file, err := c.FormFile("image"); err == nil {
		// Single-file fallback for older admin clients.
		imagePath, err := saveImage(file)
		if err != nil {
			return MultipartProductInput{}, err
		}
		input.ImagePaths = []string{imagePath}
		input.ImagesSet = true
	} else if !errors.Is(err, http.ErrMissingFile) &&
		!strings.Contains(err.Error(), "no such file") {
		return MultipartProductInput{}, err
	}

	return input, nil
}

func parseSpecFields(c *gin.Context) (models.ProductSpecs, bool) {
	specs := models.ProductSpecs{}
	set := false

	grab := func(field string, dst *string) {
		if value, ok := c.GetPostForm(field); ok {
			*dst = strings.TrimSpace(value)
			set = true
		}
	}

	grab("cpu", &specs.CPU)
	grab("ram", &specs.RAM)
	grab("storage", &specs.Storage)
	grab("screen", &specs.Screen)
	grab("battery", &specs.Battery)
	grab("os", &specs.OS)
	grab("camera_front", &specs.CameraFront)
	grab("camera_rear", &specs.CameraRear)
	grab("weight", &specs.Weight)
	grab("color", &specs.Color)
	grab("dimensions", &specs.Dimensions)
	grab("release_date", &specs.ReleaseDate)
	grab("graphics_card", &specs.GraphicsCard)
	grab("ports", &specs.Ports)
	grab("warranty", &specs.Warranty)

	return specs, set
}

/*
=======================
  IMAGE SAVE
=======================
*/

func saveImage(file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("image file extension is required")
	}
	allowedExtensions := map[string]struct{}{
		".jpg":  {},
		".jpeg": {},
		".png":  {},
		".webp": {},
	}
	if _, ok := allowedExtensions[extension]; !ok {
		return "", fmt.Errorf("unsupported image type: %s", extension)
	}
	const maxImageSize = 5 << 20
	if file.Size > maxImageSize {
		return "", fmt.Errorf("image file too large (max 5MB)")
	}

	filename := primitive.NewObjectID().Hex() + extension

	dir := filepath.Join(publicRootDir, "uploads", "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithFields(logrus.Fields{"dir": dir, "error": err.Error()}).Error("upload dir create failed")
		return "", err
	}

	fullPath := filepath.Join(dir, filename)

	out, err := os.Create(fullPath)
	if err != nil {
		logrus.WithFields(logrus.Fields{"path": fullPath, "error": err.Error()}).Error("upload create failed")
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		logrus.WithFields(logrus.Fields{"path": fullPath, "error": err.Error()}).Error("upload write failed")
		return "", err
	}

	return filepath.ToSlash(filepath.Join("uploads", "products", filename)), nil
}

/*
=======================
  HELPERS
=======================
*/

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

func respondMultipartError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
