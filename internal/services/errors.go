package services

import "errors"

// Common service errors
var (
	ErrNotFound         = errors.New("contrato no encontrado")
	ErrInvalidState     = errors.New("transición de estado inválida")
	ErrAlreadySigned    = errors.New("el contrato ya fue firmado")
	ErrMissingSignature = errors.New("la firma es requerida")
	ErrMissingSigner    = errors.New("nombre y correo del firmante son requeridos")
)
