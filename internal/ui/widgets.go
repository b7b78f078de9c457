package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// backdropWidget — полупрозрачная подложка под оверлейной панелью.
// Нажатие по ней закрывает панель.
type backdropWidget struct {
	widget.BaseWidget
	onTapped func()
}

func newBackdrop(onTapped func()) *backdropWidget {
	b := &backdropWidget{onTapped: onTapped}
	b.ExtendBaseWidget(b)
	return b
}

func (b *backdropWidget) Tapped(_ *fyne.PointEvent) {
	if b.onTapped != nil {
		b.onTapped()
	}
}

func (b *backdropWidget) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(color.NRGBA{R: 10, G: 12, B: 18, A: 110})
	return widget.NewSimpleRenderer(rect)
}

// tapCatcher — прозрачная область, перехватывающая клики вне меню
// пользователя: аналог обработчика click на document. Интерактивные
// виджеты поверх него получают нажатия первыми, как stopPropagation.
type tapCatcher struct {
	widget.BaseWidget
	onTapped func()
}

func newTapCatcher(onTapped func()) *tapCatcher {
	c := &tapCatcher{onTapped: onTapped}
	c.ExtendBaseWidget(c)
	return c
}

func (c *tapCatcher) Tapped(_ *fyne.PointEvent) {
	if c.onTapped != nil {
		c.onTapped()
	}
}

func (c *tapCatcher) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(color.Transparent)
	return widget.NewSimpleRenderer(rect)
}

// widthWatcher — layout одного объекта, сообщающий об изменении ширины.
// Используется как сигнал viewport-resize для навигационной оболочки.
type widthWatcher struct {
	onWidth func(float32)
	last    float32
}

func (w *widthWatcher) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, obj := range objects {
		obj.Move(fyne.NewPos(0, 0))
		obj.Resize(size)
	}
	if size.Width != w.last {
		w.last = size.Width
		if w.onWidth != nil {
			w.onWidth(size.Width)
		}
	}
}

func (w *widthWatcher) MinSize(objects []fyne.CanvasObject) fyne.Size {
	min := fyne.NewSize(0, 0)
	for _, obj := range objects {
		min = min.Max(obj.MinSize())
	}
	return min
}
