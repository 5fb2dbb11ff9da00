// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 shutdown 提供进程级关闭协调器。

Coordinator 的状态只会单向变化：Idle → ShuttingDown → Terminated。
第一个 SIGINT/SIGTERM（或 Trigger 调用）通过非阻塞的 TryLock 进入
ShuttingDown，按注册顺序执行清理步骤，步骤的错误和 panic 只记录
不中断，最后以状态码 0 退出进程。清理期间到达的信号直接丢弃。

Install 通过 sync.Once 保证信号处理只注册一次。
*/
package shutdown
