// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 content 实现 ClubCMS 的内容仓储：页面与博客、评论、站点设置、
团队成员、联系留言、活动报名、图库元数据以及管理员凭据。

Store 只依赖 database.Executor。生产环境中 Executor 是
ConnectionManager（PostgreSQL，带重试）或 SQLiteBackend。
需要多条语句原子执行的操作在 Execute 内部再开启事务，
因此一次重试会完整重放整个事务。

错误约定：记录不存在返回 ErrNotFound，唯一键冲突返回
ErrAlreadyExists，输入校验失败返回 *ValidationError。
*/
package content
