package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductSpecs holds free-form technical fields. No semantic validation is
// applied; empty values are omitted from documents.
type ProductSpecs struct {
	CPU          string `bson:"cpu,omitempty" json:"cpu,omitempty"`
	RAM          string `bson:"ram,omitempty" json:"ram,omitempty"`
	Storage      string `bson:"storage,omitempty" json:"storage,omitempty"`
	Screen       string `bson:"screen,omitempty" json:"screen,omitempty"`
	Battery      string `bson:"battery,omitempty" json:"battery,omitempty"`
	OS           string `bson:"os,omitempty" json:"os,omitempty"`
	CameraFront  string `bson:"cameraFront,omitempty" json:"cameraFront,omitempty"`
	CameraRear   string `bson:"cameraRear,omitempty" json:"cameraRear,omitempty"`
	Weight       string `bson:"weight,omitempty" json:"weight,omitempty"`
	Color        string `bson:"color,omitempty" json:"color,omitempty"`
	Dimensions   string `bson:"dimensions,omitempty" json:"dimensions,omitempty"`
	ReleaseDate  string `bson:"releaseDate,omitempty" json:"releaseDate,omitempty"`
	GraphicsCard string `bson:"graphicsCard,omitempty" json:"graphicsCard,omitempty"`
	Ports        string `bson:"ports,omitempty" json:"ports,omitempty"`
	Warranty     string `bson:"warranty,omitempty" json:"warranty,omitempty"`
}

type Product struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Price float64            `bson:"price" json:"price"`
	// CostPrice is the moving weighted-average unit cost maintained by the
	// stock-in ledger. It stays out of JSON entirely; admin responses
	// re-expose it through their own view type.
	CostPrice  float64            `bson:"costPrice" json:"-"`
	Stock      int                `bson:"stock" json:"stock"`
	InStock    bool               `bson:"-" json:"inStock"`
	CategoryID primitive.ObjectID `bson:"categoryId" json:"categoryId"`
	BrandID    primitive.ObjectID `bson:"brandId,omitempty" json:"brandId,omitempty"`
	Images     []string           `bson:"images" json:"images"`
	Specs      ProductSpecs       `bson:"specs,omitempty" json:"specs"`
	IsActive   bool               `bson:"isActive" json:"isActive"`
	IsDeleted  bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt  *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
