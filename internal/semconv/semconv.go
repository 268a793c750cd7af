package semconv

import (
	"go.opentelemetry.io/otel/attribute"
)

type ElementKind string

const (
	ElementSource    ElementKind = "source"
	ElementTransform ElementKind = "transform"
	ElementOutput    ElementKind = "output"
)

func Element(kind ElementKind, plugin, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("measured.element.kind", string(kind)),
		attribute.String("measured.element.plugin", plugin),
		attribute.String("measured.element.name", name),
	}
}

func TickFailed(failed bool) attribute.KeyValue {
	return attribute.Bool("measured.tick.failed", failed)
}
