package state

// GroupID идентифицирует раскрываемую группу бокового меню.
type GroupID string

const (
	GroupNone       GroupID = ""
	GroupEmployees  GroupID = "employees"
	GroupAttendance GroupID = "attendance"
	GroupLeave      GroupID = "leave"
	GroupPayroll    GroupID = "payroll"
	GroupDocuments  GroupID = "documents"
)

// WideLayoutWidth — порог ширины окна, выше которого боковая панель
// закреплена в раскладке и оверлейный режим не используется.
const WideLayoutWidth float32 = 1024

// NavigationState описывает видимость панели, выпадающего меню пользователя
// и раскрытой группы подменю. Все переходы синхронны и определены в любом
// состоянии; значение не сохраняется между запусками.
type NavigationState struct {
	// PanelOpen управляет оверлейной боковой панелью на узких окнах.
	PanelOpen bool
	// UserMenuOpen управляет выпадающим меню пользователя.
	UserMenuOpen bool
	// ExpandedSubmenu — раскрытая группа подменю; не более одной.
	ExpandedSubmenu GroupID
	// Wide истинно, когда ширина окна превышает WideLayoutWidth.
	Wide bool
}

// TogglePanel переключает оверлейную панель. В широкой раскладке панель
// закреплена и флаг остаётся ложным.
func (n *NavigationState) TogglePanel() {
	if n.Wide {
		n.PanelOpen = false
		return
	}
	n.PanelOpen = !n.PanelOpen
}

// ClickBackdrop закрывает оверлейную панель.
func (n *NavigationState) ClickBackdrop() {
	n.PanelOpen = false
}

// ToggleUserMenu переключает меню пользователя.
func (n *NavigationState) ToggleUserMenu() {
	n.UserMenuOpen = !n.UserMenuOpen
}

// ClickOutside закрывает меню пользователя.
func (n *NavigationState) ClickOutside() {
	n.UserMenuOpen = false
}

// ToggleSubmenu раскрывает группу g, сворачивая любую другую раскрытую
// группу в этом же переходе; повторный вызов для той же группы сворачивает её.
func (n *NavigationState) ToggleSubmenu(g GroupID) {
	if n.ExpandedSubmenu == g {
		n.ExpandedSubmenu = GroupNone
		return
	}
	n.ExpandedSubmenu = g
}

// Resize применяет новую ширину окна. Выше порога оверлейная панель
// принудительно закрывается.
func (n *NavigationState) Resize(width float32) {
	n.Wide = width > WideLayoutWidth
	if n.Wide {
		n.PanelOpen = false
	}
}
