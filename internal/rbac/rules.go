package rbac

// RoleNone is attached to signed-in users who have not picked a role yet.
const RoleNone = "unassigned"

var RolePermissions = map[string][]string{
	RoleNone: {
		"user:set_role",
		"user:change_password",
	},
	"student": {
		"test:view",
		"submission:start",
		"submission:save",
		"submission:submit",
		"submission:view-own",
		"user:set_role",
		"user:change_password",
	},
	"teacher": {
		"test:create",
		"test:view",
		"grading:view",
		"grading:grade",
		"user:set_role",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
