package auth

// GetPermissionModel 获取 OpenFGA 授权模型定义
//
// 评估的参与人关系由 StakeholderSync 写入。
func GetPermissionModel() string {
	return `model
  schema 1.1

type user

type organization
  relations
    define member: [user]

type assessment
  relations
    define organization: [organization]
    define owner: [user]
    define reviewer: [user]
    define approver: [user]
    define viewer: [user] or owner or reviewer or approver or member from organization`
}
