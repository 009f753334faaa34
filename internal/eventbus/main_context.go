package eventbus

//go:generate mockgen -destination=mock/mock_main_context.go -package=mockeventbus -source=main_context.go MainContext

// MainContext runs posted functions on the designated main goroutine, in the
// order they were posted. Post must not wait for fn to run.
type MainContext interface {
	Post(fn func())
}
