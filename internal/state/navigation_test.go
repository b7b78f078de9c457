package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleSubmenuExclusivity(t *testing.T) {
	nav := NavigationState{}
	sequence := []GroupID{
		GroupEmployees, GroupPayroll, GroupPayroll, GroupLeave,
		GroupEmployees, GroupDocuments, GroupAttendance, GroupAttendance,
		GroupLeave, GroupPayroll, GroupEmployees, GroupEmployees,
	}
	for i, group := range sequence {
		before := nav.ExpandedSubmenu
		nav.ToggleSubmenu(group)
		if before == group {
			assert.Equal(t, GroupNone, nav.ExpandedSubmenu, "step %d: repeated toggle must collapse", i)
		} else {
			assert.Equal(t, group, nav.ExpandedSubmenu, "step %d: toggle must expand the requested group", i)
		}
	}
}

func TestToggleSubmenuRoundTrip(t *testing.T) {
	nav := NavigationState{}
	nav.ToggleSubmenu(GroupLeave)
	require.Equal(t, GroupLeave, nav.ExpandedSubmenu)
	nav.ToggleSubmenu(GroupLeave)
	require.Equal(t, GroupNone, nav.ExpandedSubmenu)
}

func TestResizeClosesPanel(t *testing.T) {
	tests := []struct {
		name      string
		panelOpen bool
		width     float32
		wantOpen  bool
		wantWide  bool
	}{
		{name: "narrow keeps open panel", panelOpen: true, width: 800, wantOpen: true, wantWide: false},
		{name: "wide closes open panel", panelOpen: true, width: 1280, wantOpen: false, wantWide: true},
		{name: "wide keeps closed panel", panelOpen: false, width: 1280, wantOpen: false, wantWide: true},
		{name: "threshold itself is narrow", panelOpen: true, width: WideLayoutWidth, wantOpen: true, wantWide: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nav := NavigationState{PanelOpen: tc.panelOpen}
			nav.Resize(tc.width)
			assert.Equal(t, tc.wantOpen, nav.PanelOpen)
			assert.Equal(t, tc.wantWide, nav.Wide)
		})
	}
}

func TestTogglePanel(t *testing.T) {
	nav := NavigationState{}
	nav.TogglePanel()
	assert.True(t, nav.PanelOpen)
	nav.TogglePanel()
	assert.False(t, nav.PanelOpen)

	nav.Resize(1400)
	nav.TogglePanel()
	assert.False(t, nav.PanelOpen, "panel stays closed in wide layout")
}

func TestBackdropClosesPanel(t *testing.T) {
	nav := NavigationState{PanelOpen: true}
	nav.ClickBackdrop()
	assert.False(t, nav.PanelOpen)
	nav.ClickBackdrop()
	assert.False(t, nav.PanelOpen)
}

func TestUserMenuOutsideClick(t *testing.T) {
	nav := NavigationState{}
	// два быстрых переключения и клик вне меню
	nav.ToggleUserMenu()
	nav.ToggleUserMenu()
	nav.ClickOutside()
	assert.False(t, nav.UserMenuOpen)

	nav.ToggleUserMenu()
	require.True(t, nav.UserMenuOpen)
	nav.ClickOutside()
	assert.False(t, nav.UserMenuOpen)
}

func TestSubmenuIndependentOfPanel(t *testing.T) {
	nav := NavigationState{}
	nav.TogglePanel()
	nav.ToggleSubmenu(GroupPayroll)
	nav.ClickBackdrop()
	assert.Equal(t, GroupPayroll, nav.ExpandedSubmenu, "closing the panel must not collapse the submenu")
}
