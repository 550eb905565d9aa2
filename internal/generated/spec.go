package generated

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen -generate types,gin -package generated -o api.gen.go openapi.yaml

//go:embed openapi.yaml
var rawSpec []byte

// GetSwagger はAPI定義を読み込んで検証済みのドキュメントを返す
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("API定義の読み込みに失敗: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("API定義が不正です: %w", err)
	}
	return doc, nil
}

// RawSpec はAPI定義のYAMLを返す
func RawSpec() []byte {
	return rawSpec
}
